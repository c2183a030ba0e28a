package plugins

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclModuleFile is the top-level structure of an HCL module
type hclModuleFile struct {
	Exports cty.Value   `hcl:"exports,optional"`
	Imports []string    `hcl:"imports,optional"`
	Effects cty.Value   `hcl:"effects,optional"`
	Classes []*hclClass `hcl:"class,block"`
}

type hclClass struct {
	Name        string    `hcl:"name,label"`
	Extends     string    `hcl:"extends,optional"`
	PluginName  string    `hcl:"plugin_name,optional"`
	LineageName string    `hcl:"lineage_name,optional"`
	Attributes  cty.Value `hcl:"attributes,optional"`
}

func decodeHCLModule(filename string, data []byte) (*ModuleSource, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL module %s: %w", filename, diags)
	}

	var parsed hclModuleFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL module %s: %w", filename, diags)
	}

	src := &ModuleSource{Imports: parsed.Imports}

	if !parsed.Exports.IsNull() {
		list, err := convert.Convert(parsed.Exports, cty.List(cty.String))
		if err != nil {
			return nil, fmt.Errorf("%s: exports must be a list of strings: %w", filename, err)
		}
		exports := []string{}
		if err := gocty.FromCtyValue(list, &exports); err != nil {
			return nil, fmt.Errorf("%s: exports: %w", filename, err)
		}
		src.Exports = exports
	}

	effects, err := ctyToMap(parsed.Effects)
	if err != nil {
		return nil, fmt.Errorf("%s: effects: %w", filename, err)
	}
	src.Effects = effects

	for _, c := range parsed.Classes {
		attrs, err := ctyToMap(c.Attributes)
		if err != nil {
			return nil, fmt.Errorf("%s: class %q attributes: %w", filename, c.Name, err)
		}
		src.Classes = append(src.Classes, ClassSource{
			Name:        c.Name,
			Extends:     c.Extends,
			PluginName:  c.PluginName,
			LineageName: c.LineageName,
			Attributes:  attrs,
		})
	}
	return src, nil
}

func ctyToMap(v cty.Value) (map[string]any, error) {
	if v.IsNull() {
		return nil, nil
	}
	native, err := ctyToNative(v)
	if err != nil {
		return nil, err
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %s", v.Type().FriendlyName())
	}
	return m, nil
}

// ctyToNative converts a cty.Value into plain Go values
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == 0 {
				return int(i), nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
