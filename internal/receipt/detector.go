package receipt

import (
	"errors"
	"strings"

	"github.com/angelmondragon/cestaprecios/pkg/enums"
)

// ErrSupermarketNotDetected is returned when no vocabulary chain appears in the receipt text.
var ErrSupermarketNotDetected = errors.New("supermarket not detected in receipt")

// Receipt bundles the detected chain with the parsed lines of one OCR text.
type Receipt struct {
	Supermarket enums.Supermarket
	Detected    bool
	Lines       []ParsedLine
}

// Detect finds the first vocabulary chain whose name appears in the text.
func Detect(raw string) (enums.Supermarket, bool) {
	text := strings.ToLower(raw)
	for _, supermarket := range enums.Supermarkets() {
		if strings.Contains(text, strings.ToLower(supermarket.String())) {
			return supermarket, true
		}
	}
	return "", false
}

// ParseReceipt runs detection and line parsing. Lines are parsed even when no chain is found;
// callers decide whether an undetected receipt is usable.
func ParseReceipt(raw string) Receipt {
	supermarket, ok := Detect(raw)
	return Receipt{
		Supermarket: supermarket,
		Detected:    ok,
		Lines:       Parse(raw),
	}
}

// Require returns ErrSupermarketNotDetected when the receipt has no known chain.
func (r Receipt) Require() error {
	if !r.Detected {
		return ErrSupermarketNotDetected
	}
	return nil
}
