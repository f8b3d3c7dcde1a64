package lifecycle

import (
	"fmt"
	"strings"
)

// SignatureOption selects how the approval artifact is signed.
type SignatureOption string

const (
	SignatureGenuine SignatureOption = "genuine"
	SignatureScanned SignatureOption = "scanned"
)

// legacySignatureSpellings lists wire values older clients sent. Display labels
// belong to the display package; they are accepted here only for decoding.
var legacySignatureSpellings = map[string]SignatureOption{
	"original":       SignatureGenuine,
	"realscan":       SignatureGenuine,
	"حقيقية":         SignatureGenuine,
	"الممسوحة ضوئيا": SignatureScanned,
}

func ParseSignatureOption(value string) (SignatureOption, error) {
	trimmed := strings.TrimSpace(value)
	switch SignatureOption(strings.ToLower(trimmed)) {
	case SignatureGenuine:
		return SignatureGenuine, nil
	case SignatureScanned:
		return SignatureScanned, nil
	}
	if option, ok := legacySignatureSpellings[strings.ToLower(trimmed)]; ok {
		return option, nil
	}
	return "", fmt.Errorf("unknown signature option %q", value)
}

func (o SignatureOption) Valid() bool {
	return o == SignatureGenuine || o == SignatureScanned
}

func (o SignatureOption) String() string {
	return string(o)
}
