package render

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ShaderHandle identifies a shader in Shaders. Handles built with
// NewShaderHandle are stable across runs.
type ShaderHandle uuid.UUID

var shaderNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("gekko/render/shader"))

func NewShaderHandle(name string) ShaderHandle {
	return ShaderHandle(uuid.NewSHA1(shaderNamespace, []byte(name)))
}

func (h ShaderHandle) String() string {
	return uuid.UUID(h).String()
}

type Shader struct {
	Path   string
	Source string
}

// Shaders stores WGSL sources by handle. Pipelines may compile on worker
// goroutines, so access is locked.
type Shaders struct {
	mu      sync.RWMutex
	shaders map[ShaderHandle]Shader
}

func NewShaders() *Shaders {
	return &Shaders{shaders: map[ShaderHandle]Shader{}}
}

func (s *Shaders) Insert(handle ShaderHandle, shader Shader) {
	s.mu.Lock()
	s.shaders[handle] = shader
	s.mu.Unlock()
}

func (s *Shaders) Get(handle ShaderHandle) (Shader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shader, ok := s.shaders[handle]
	return shader, ok
}

// ProcessShader resolves the #ifdef, #ifndef, #else and #endif directives
// of source against defs. Directives nest.
func ProcessShader(source string, defs []string) (string, error) {
	type frame struct {
		active     bool
		parent     bool
		seenElse   bool
		directive  string
		lineNumber int
	}

	var (
		out   strings.Builder
		stack []frame
	)
	active := true

	for i, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		directive, arg, _ := strings.Cut(trimmed, " ")
		arg = strings.TrimSpace(arg)

		switch directive {
		case "#ifdef", "#ifndef":
			if arg == "" {
				return "", fmt.Errorf("line %d: %s without a name", i+1, directive)
			}
			defined := slices.Contains(defs, arg)
			cond := defined == (directive == "#ifdef")
			stack = append(stack, frame{active: active && cond, parent: active, directive: directive, lineNumber: i + 1})
			active = active && cond
			continue
		case "#else":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #else without #ifdef", i+1)
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				return "", fmt.Errorf("line %d: duplicate #else", i+1)
			}
			top.seenElse = true
			top.active = top.parent && !top.active
			active = top.active
			continue
		case "#endif":
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: #endif without #ifdef", i+1)
			}
			active = stack[len(stack)-1].parent
			stack = stack[:len(stack)-1]
			continue
		}

		if active {
			out.WriteString(line)
			out.WriteByte('\n')
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return "", fmt.Errorf("line %d: unterminated %s", top.lineNumber, top.directive)
	}
	return out.String(), nil
}
