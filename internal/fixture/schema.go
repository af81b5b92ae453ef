// SPDX-License-Identifier: Apache-2.0

package fixture

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// simulationSchema constrains the simulation config handed to the generator
// script. Definitions are closed, so a misspelled key is rejected here
// instead of being ignored by the simulator.
const simulationSchema = `
#Range: [number, number]

#Mod: {
	base:           string
	is_strand_plus: bool
	mod_code:       string
	win: [...int & >0]
	mod_range: [...#Range]
}

#Reads: {
	number:           int & >0
	mapq_range?:      [int & >=0, int & >=0]
	base_qual_range?: [int & >=0, int & >=0]
	len_range:        #Range
	delete?:          #Range
	insert_middle?:   string
	mods?: [...#Mod]
}

#Simulation: {
	contigs: {
		number: int & >0
		len_range: [int & >0, int & >0]
	}
	reads: [#Reads, ...#Reads]
}
`

var (
	schemaOnce sync.Once
	cueCtx     *cue.Context
	schemaVal  cue.Value
	schemaErr  error

	// cue.Context is not safe for concurrent use.
	schemaMu sync.Mutex
)

func simulationDefinition() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		cueCtx = cuecontext.New()
		root := cueCtx.CompileString(simulationSchema)
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("failed to compile simulation schema: %w", err)
			return
		}
		schemaVal = root.LookupPath(cue.ParsePath("#Simulation"))
		schemaErr = schemaVal.Err()
	})
	return cueCtx, schemaVal, schemaErr
}

// Validate checks spec.Simulation against the simulation schema. Specs
// without a simulation are accepted; their generator does not need one.
func Validate(spec Spec) error {
	if spec.Simulation == nil {
		return nil
	}
	ctx, schema, err := simulationDefinition()
	if err != nil {
		return err
	}
	schemaMu.Lock()
	defer schemaMu.Unlock()
	value := ctx.Encode(spec.Simulation)
	if err := value.Err(); err != nil {
		return fmt.Errorf("fixture %q: invalid simulation config: %w", spec.Name, err)
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("fixture %q: invalid simulation config: %w", spec.Name, err)
	}
	return nil
}
