// spec.go
package openapi2mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVersionParamName is the path placeholder replaced by the document's
// API version.
const DefaultVersionParamName = "version"

var defaultVersionMatch = regexp.MustCompile(`^v[1-9]+`)

// operationMethods are the path item keys that hold operations.
var operationMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

// Document is the part of an OpenAPI (or Swagger 2.0) description needed to
// build and dispatch tools. Paths and operations keep document order.
type Document struct {
	Title   string
	Version string
	Paths   []PathItem
}

// PathItem holds the operations declared under one path template.
type PathItem struct {
	Path       string
	Parameters []Parameter
	Operations []Operation
}

// Operation is one HTTP method on one path.
type Operation struct {
	Method      string
	OperationID string
	Summary     string
	Description string
	Parameters  []Parameter
}

// Parameter is a declared operation or path-level parameter.
type Parameter struct {
	Name        string
	In          string
	Required    bool
	Type        string
	Description string
}

// DefaultVersion returns info.version when it looks like an API version
// ("v1", "v2", ...), or "" otherwise.
func (d *Document) DefaultVersion() string {
	if d == nil || !defaultVersionMatch.MatchString(d.Version) {
		return ""
	}
	return d.Version
}

// PathWithVersion substitutes the {version} placeholder of path with version.
// The boolean reports whether a substitution took place, in which case the
// version parameter must no longer be exposed as a tool argument.
func PathWithVersion(path, version string) (string, bool) {
	placeholder := "{" + DefaultVersionParamName + "}"
	if version != "" && strings.Contains(path, placeholder) {
		return strings.ReplaceAll(path, placeholder, version), true
	}
	return path, false
}

// LoadDocumentFromBytes parses JSON, falling back to YAML, into a Document.
func LoadDocumentFromBytes(data []byte) (*Document, error) {
	root, err := decodeJSONDocument(data)
	if err != nil {
		var node yaml.Node
		if yerr := yaml.Unmarshal(data, &node); yerr != nil {
			return nil, fmt.Errorf("%w: YAML parsing failed: %v. Raw content: %s...", ErrSpecMalformed, yerr, head(data, 500))
		}
		root = &node
	}
	return buildDocument(root)
}

func head(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return string(data)
}

// buildDocument converts a decoded tree into a Document.
func buildDocument(root *yaml.Node) (*Document, error) {
	top := deref(root)
	if top != nil && top.Kind == yaml.DocumentNode && len(top.Content) > 0 {
		top = deref(top.Content[0])
	}
	if top == nil || top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level is not a mapping", ErrSpecMalformed)
	}
	b := &docBuilder{root: top}
	doc := &Document{}
	if info := mappingValue(top, "info"); info != nil {
		doc.Title = scalarValue(mappingValue(info, "title"))
		doc.Version = scalarValue(mappingValue(info, "version"))
	}
	paths := mappingValue(top, "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return doc, nil
	}
	eachPair(paths, func(key string, value *yaml.Node) {
		item := PathItem{Path: key}
		if value.Kind == yaml.MappingNode {
			eachPair(value, func(k string, v *yaml.Node) {
				switch {
				case k == "parameters":
					item.Parameters = b.parameters(v)
				case operationMethods[strings.ToLower(k)] && v.Kind == yaml.MappingNode:
					item.Operations = append(item.Operations, b.operation(k, v))
				}
			})
		}
		doc.Paths = append(doc.Paths, item)
	})
	return doc, nil
}

type docBuilder struct {
	root *yaml.Node
}

func (b *docBuilder) operation(method string, n *yaml.Node) Operation {
	return Operation{
		Method:      method,
		OperationID: scalarValue(mappingValue(n, "operationId")),
		Summary:     scalarValue(mappingValue(n, "summary")),
		Description: scalarValue(mappingValue(n, "description")),
		Parameters:  b.parameters(mappingValue(n, "parameters")),
	}
}

func (b *docBuilder) parameters(n *yaml.Node) []Parameter {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	params := make([]Parameter, 0, len(n.Content))
	for _, item := range n.Content {
		item = b.resolve(deref(item))
		if item == nil || item.Kind != yaml.MappingNode {
			continue
		}
		p := Parameter{
			Name:        scalarValue(mappingValue(item, "name")),
			In:          scalarValue(mappingValue(item, "in")),
			Required:    strings.EqualFold(scalarValue(mappingValue(item, "required")), "true"),
			Description: scalarValue(mappingValue(item, "description")),
		}
		if schema := b.resolve(mappingValue(item, "schema")); schema != nil {
			p.Type = scalarValue(mappingValue(schema, "type"))
		}
		if p.Type == "" {
			// Swagger 2.0 declares the type on the parameter itself.
			p.Type = scalarValue(mappingValue(item, "type"))
		}
		params = append(params, p)
	}
	return params
}

// resolve follows a local "$ref" (e.g. #/components/parameters/Id).
// Unresolvable references yield the node unchanged.
func (b *docBuilder) resolve(n *yaml.Node) *yaml.Node {
	for depth := 0; n != nil && n.Kind == yaml.MappingNode && depth < 8; depth++ {
		ref := scalarValue(mappingValue(n, "$ref"))
		if !strings.HasPrefix(ref, "#/") {
			return n
		}
		target := b.root
		for _, token := range strings.Split(ref[2:], "/") {
			token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
			target = mappingValue(target, token)
			if target == nil {
				return n
			}
		}
		n = target
	}
	return n
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return deref(n.Content[i+1])
		}
	}
	return nil
}

func eachPair(n *yaml.Node, fn func(key string, value *yaml.Node)) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if v := deref(n.Content[i+1]); v != nil {
			fn(n.Content[i].Value, v)
		}
	}
}

func scalarValue(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// decodeJSONDocument decodes JSON into a yaml.Node tree so that both input
// formats share one, order-preserving representation. yaml.v3 cannot read
// every JSON document itself: it rejects the \/ escape and UTF-16 surrogate
// pairs, which Python's json.dumps emits for characters outside the BMP.
func decodeJSONDocument(data []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := decodeJSONNode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON document")
	}
	return n, nil
}

func decodeJSONNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected JSON object key %v", keyTok)
				}
				value, err := decodeJSONNode(dec)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				value, err := decodeJSONNode(dec)
				if err != nil {
					return nil, err
				}
				n.Content = append(n.Content, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected JSON delimiter %v", v)
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}, nil
	case json.Number:
		tag := "!!int"
		if strings.ContainsAny(v.String(), ".eE") {
			tag = "!!float"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.String()}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", v)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}
