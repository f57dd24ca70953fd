package openapi2mcp

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/lithammer/shortuuid/v4"
)

// maxNameLength is the longest name the sanitizer emits; MCP clients accept 64.
const maxNameLength = 63

const unknownToolName = "unknown_tool"

var legalName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ToolNameStrategy maps operation identities to MCP-legal names.
type ToolNameStrategy interface {
	// NormalizeToolName turns "{service}_{METHOD} {path}" into a tool name.
	NormalizeToolName(rawName string) (string, error)
	// NormalizeToolParameterName makes a parameter name legal. Parameter
	// names only need to be unique within one tool.
	NormalizeToolParameterName(rawName string) (string, error)
}

// ToolNameFromOperationID returns operationID when it is usable as a tool
// name as is, and otherwise derives a name from rawName.
func ToolNameFromOperationID(operationID, rawName string, strategy ToolNameStrategy) (string, error) {
	if operationID != "" && legalName.MatchString(operationID) {
		return operationID, nil
	}
	return strategy.NormalizeToolName(rawName)
}

// RawToolName is the identity of an operation fed to a ToolNameStrategy.
func RawToolName(service, method, path string) string {
	return fmt.Sprintf("%s_%s %s", service, strings.ToUpper(method), path)
}

// ShortToolNameStrategy projects the cleaned "method_path" token stream
// through a name-based short UUID. The result is legal, stable across loads
// of the same spec and unaffected by truncation collisions.
type ShortToolNameStrategy struct{}

func (ShortToolNameStrategy) NormalizeToolName(rawName string) (string, error) {
	name, err := tokenName(rawName)
	if err != nil || name == unknownToolName {
		return name, err
	}
	// Hash the untruncated form so long paths sharing a prefix stay distinct.
	tokens, _ := tokenStream(rawName)
	return shortuuid.NewWithNamespace(cleanName(tokens)), nil
}

func (ShortToolNameStrategy) NormalizeToolParameterName(rawName string) (string, error) {
	return SanitizeName(rawName)
}

// PlainToolNameStrategy keeps the readable "method_path" form. Long paths
// that share their first 63 characters collide; the parser keeps the first.
type PlainToolNameStrategy struct{}

func (PlainToolNameStrategy) NormalizeToolName(rawName string) (string, error) {
	return tokenName(rawName)
}

func (PlainToolNameStrategy) NormalizeToolParameterName(rawName string) (string, error) {
	return SanitizeName(rawName)
}

// tokenName converts "gateway_GET /v1/users/{id}/" into
// "gateway_get_v1_users_id".
func tokenName(rawName string) (string, error) {
	tokens, ok := tokenStream(rawName)
	if !ok {
		return unknownToolName, nil
	}
	return SanitizeName(tokens)
}

func tokenStream(rawName string) (string, bool) {
	method, path, ok := strings.Cut(rawName, " ")
	if !ok {
		return "", false
	}
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		part = strings.TrimPrefix(part, "{")
		part = strings.TrimSuffix(part, "}")
		parts = append(parts, part)
	}
	return strings.ToLower(method) + "_" + strings.Join(parts, "_"), true
}

// SanitizeName strips characters MCP clients reject and truncates the result.
func SanitizeName(rawName string) (string, error) {
	name := cleanName(rawName)
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	if !legalName.MatchString(name) {
		return "", fmt.Errorf("%w: conversion of %q did not pass checks", ErrIllegalName, rawName)
	}
	return name, nil
}

func cleanName(rawName string) string {
	var b strings.Builder
	for _, r := range rawName {
		switch {
		case r == '{' || r == '}':
		case r == ',' || unicode.IsSpace(r):
			b.WriteByte('_')
		case r == '_' || r == '-' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		}
	}
	return b.String()
}
