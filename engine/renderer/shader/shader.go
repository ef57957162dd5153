package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-canvas/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

// ShaderType identifies a render stage entry point inside a WGSL module.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex stage, declared with @vertex.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment stage, declared with @fragment.
	ShaderTypeFragment
)

// String returns the WGSL attribute name of the stage.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	entryPoints                map[ShaderType]string
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
}

// Shader is a validated WGSL module holding both the vertex and fragment stage of a full-screen
// pipeline, plus the bind group layouts reflected from its resource declarations.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for labels and error messages.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// EntryPoint returns the entry point name declared for a stage.
	//
	// Parameters:
	//   - stage: ShaderTypeVertex or ShaderTypeFragment
	//
	// Returns:
	//   - string: the function name, or empty if the stage is not declared
	EntryPoint(stage ShaderType) string

	// BindGroupLayoutDescriptor retrieves the reflected layout descriptor for a bind group index.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - wgpu.BindGroupLayoutDescriptor: the descriptor, or an empty descriptor if the group is not declared
	BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor

	// BindGroupLayoutDescriptors retrieves all reflected layout descriptors keyed by group index.
	// Entries are visible to both the vertex and fragment stage since both live in this module.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupFromVarName retrieves the binding index of a named variable within a group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name within the group
	//
	// Returns:
	//   - int: the binding index, or -1 if not found
	//   - bool: true if the variable name was found
	BindGroupFromVarName(group int, varName string) (int, bool)
}

var _ Shader = &shader{}

// NewShader validates WGSL source and reflects its entry points and bind group layouts.
// The source is compiled with naga first; a module that fails to compile, or that does not
// declare both a @vertex and a @fragment entry point, is rejected.
//
// Parameters:
//   - key: a unique identifier for the shader, used for labels and errors
//   - source: the WGSL source
//
// Returns:
//   - Shader: the validated shader
//   - error: a *common.ShaderCompileError describing the failure
func NewShader(key, source string) (Shader, error) {
	if _, err := naga.Compile(source); err != nil {
		return nil, &common.ShaderCompileError{Shader: key, Err: err}
	}

	cleaned := stripComments(source)
	s := &shader{
		key:         key,
		source:      source,
		entryPoints: make(map[ShaderType]string, 2),
	}
	for _, stage := range []ShaderType{ShaderTypeVertex, ShaderTypeFragment} {
		name := parseEntryPoint(cleaned, stage)
		if name == "" {
			return nil, &common.ShaderCompileError{Shader: key, Err: fmt.Errorf("no @%s entry point", stage)}
		}
		s.entryPoints[stage] = name
	}

	layouts, names, err := parseBindGroupLayouts(cleaned, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)
	if err != nil {
		return nil, &common.ShaderCompileError{Shader: key, Err: err}
	}
	s.bindGroupLayoutDescriptors = layouts
	s.bindingVarNames = names
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint(stage ShaderType) string {
	return s.entryPoints[stage]
}

func (s *shader) BindGroupLayoutDescriptor(group int) wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}
