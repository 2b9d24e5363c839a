package reconciler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const logicalIDSuffix = "SCProvisionedProduct"

// LogicalID returns the template logical id of the provisioned product for the
// function registered under key.
func LogicalID(key string) string {
	return NormalizeFunctionName(key) + logicalIDSuffix
}

// NormalizeFunctionName makes a function key safe for use in a logical id:
// dashes and underscores are spelled out and the first letter is upper cased.
func NormalizeFunctionName(key string) string {
	name := strings.NewReplacer("-", "Dash", "_", "Underscore").Replace(key)
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// ProvisionedProductName returns the display name of a provisioned product
func ProvisionedProductName(functionName string) string {
	return "provisionSC-" + functionName
}

// ServiceEndpointImport returns the export name of a function's service endpoint
func ServiceEndpointImport(functionName string) string {
	return functionName + "-ServiceEndpoint"
}
