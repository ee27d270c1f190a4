package manifest

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Descriptor is the parsed shape of a package descriptor or template.
// Fields beyond these may appear in the file; they are preserved verbatim
// by synthesis and ignored here.
type Descriptor struct {
	Name         string
	Description  string
	Version      string
	Modules      []string
	Registered   []string
	Applications []string
	Env          map[string]string
}

// Consult parses the descriptor at path with the standard HCL parser and
// decodes the fields the build core cares about. It is used both to read
// pre-existing descriptors and to validate freshly synthesized ones.
func Consult(path string) (*Descriptor, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return consultBytes(src, path)
}

func consultBytes(src []byte, filename string) (*Descriptor, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", filename, diags)
	}

	content, _, diags := file.Body.PartialContent(&hcl.BodySchema{
		Blocks: []hcl.BlockHeaderSchema{{Type: "package", LabelNames: []string{"name"}}},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading %s: %w", filename, diags)
	}
	if len(content.Blocks) == 0 {
		return nil, fmt.Errorf("%s: no package block found", filename)
	}

	block := content.Blocks[0]
	desc := &Descriptor{Name: block.Labels[0]}

	attrs, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "description"},
			{Name: "version", Required: true},
			{Name: "modules", Required: true},
			{Name: "registered"},
			{Name: "applications"},
			{Name: "env"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("reading %s: %w", filename, diags)
	}

	if attr, ok := attrs.Attributes["description"]; ok {
		if s, err := stringValue(attr); err == nil {
			desc.Description = s
		}
	}

	versionAttr := attrs.Attributes["version"]
	version, err := versionValue(versionAttr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	desc.Version = version

	modules, err := stringListValue(attrs.Attributes["modules"])
	if err != nil {
		return nil, fmt.Errorf("%s: modules: %w", filename, err)
	}
	desc.Modules = modules

	if attr, ok := attrs.Attributes["registered"]; ok {
		if desc.Registered, err = stringListValue(attr); err != nil {
			return nil, fmt.Errorf("%s: registered: %w", filename, err)
		}
	}
	if attr, ok := attrs.Attributes["applications"]; ok {
		if desc.Applications, err = stringListValue(attr); err != nil {
			return nil, fmt.Errorf("%s: applications: %w", filename, err)
		}
	}
	if attr, ok := attrs.Attributes["env"]; ok {
		if desc.Env, err = stringMapValue(attr); err != nil {
			return nil, fmt.Errorf("%s: env: %w", filename, err)
		}
	}
	return desc, nil
}

// ReadVersion returns the version recorded in the descriptor or template at
// path, or ok=false when the file is absent or unreadable.
func ReadVersion(path string) (string, bool) {
	desc, err := Consult(path)
	if err != nil {
		return "", false
	}
	return desc.Version, desc.Version != ""
}

// versionValue accepts both version representations: a plain string, or an
// object whose "value" entry carries the string.
func versionValue(attr *hcl.Attribute) (string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", fmt.Errorf("version: %w", diags)
	}
	if val.Type() == cty.String {
		return val.AsString(), nil
	}
	if val.Type().IsObjectType() && val.Type().HasAttribute("value") {
		inner := val.GetAttr("value")
		if inner.Type() == cty.String {
			return inner.AsString(), nil
		}
	}
	return "", fmt.Errorf("version: expected a string or an object with a string value")
}

func stringValue(attr *hcl.Attribute) (string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if val.Type() != cty.String {
		return "", fmt.Errorf("expected a string")
	}
	return val.AsString(), nil
}

func stringListValue(attr *hcl.Attribute) ([]string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("expected a list of strings")
	}
	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.Type() != cty.String {
			return nil, fmt.Errorf("expected a list of strings")
		}
		out = append(out, elem.AsString())
	}
	return out, nil
}

func stringMapValue(attr *hcl.Attribute) (map[string]string, error) {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if !val.CanIterateElements() {
		return nil, fmt.Errorf("expected a map")
	}
	out := make(map[string]string)
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		if k.Type() != cty.String || v.Type() != cty.String {
			return nil, fmt.Errorf("expected string keys and values")
		}
		out[k.AsString()] = v.AsString()
	}
	return out, nil
}
