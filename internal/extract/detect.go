package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
)

// extensionTypes maps supported file extensions to document types.
var extensionTypes = map[string]domain.DocumentType{
	".pdf":  domain.DocTypeNarrative,
	".xlsx": domain.DocTypeTabular,
	".xls":  domain.DocTypeTabular,
	".csv":  domain.DocTypeTabular,
	".txt":  domain.DocTypeOther,
}

// DetectType classifies a document by its filename extension.
// Unsupported extensions return domain.ErrUnsupportedType.
func DetectType(filename string) (domain.DocumentType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := extensionTypes[ext]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedType, ext)
}

// Supported reports whether the filename has a supported extension.
func Supported(filename string) bool {
	_, err := DetectType(filename)
	return err == nil
}

// SupportedExtensions returns the accepted file extensions, dot included.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionTypes))
	for ext := range extensionTypes {
		exts = append(exts, ext)
	}
	return exts
}
