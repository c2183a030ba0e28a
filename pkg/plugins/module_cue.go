package plugins

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// moduleSchema constrains CUE modules before decoding
const moduleSchema = `
#Class: {
	name:          string & !=""
	extends?:      string
	plugin_name?:  string
	lineage_name?: string
	attributes?: {...}
}

#Module: {
	exports?: [...string]
	imports?: [...string]
	effects?: {...}
	classes?: [...#Class]
}
`

func decodeCUEModule(filename string, data []byte) (*ModuleSource, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(moduleSchema)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("internal error: failed to compile module schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE module %s: %w", filename, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Module")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid CUE module %s: %w", filename, err)
	}

	var src ModuleSource
	if err := unified.Decode(&src); err != nil {
		return nil, fmt.Errorf("failed to decode CUE module %s: %w", filename, err)
	}
	return &src, nil
}
