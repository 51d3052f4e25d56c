package script

import (
	"regexp"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"Lunar3D/internal/scene"
)

// HookNames is the closed set of lifecycle callbacks a script may define.
// Every hook is optional.
var HookNames = []string{
	"start", "update", "fixedUpdate", "onDestroy",
	"onEnable", "onDisable", "onCollisionEnter", "onCollisionExit",
}

// CompileError is a structured compilation failure: message plus a
// best-effort source line (0 when unknown).
type CompileError struct {
	Message string
	Line    int
}

func (e *CompileError) Error() string {
	return e.Message
}

// CompiledUnit is the immutable output of compiling one script revision.
// A new edit always produces a new unit.
type CompiledUnit struct {
	DisplayName string
	Proto       *lua.FunctionProto
	Hooks       map[string]bool
	Schema      []Property
	Err         *CompileError
}

// SchemaProperty returns the schema entry with the given name, if present.
func (u *CompiledUnit) SchemaProperty(name string) (Property, bool) {
	for _, p := range u.Schema {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Compiler turns script text into compiled units bound to one host
// environment. It never fails outward: every error is captured inside the
// returned unit.
type Compiler struct {
	env Env
}

func NewCompiler(env Env) *Compiler {
	return &Compiler{env: env}
}

func (c *Compiler) Env() Env {
	return c.env
}

var errLinePattern = regexp.MustCompile(`:(\d+):`)

// Compile parses, compiles and probe-executes the script text. The probe run
// happens in a scratch sandbox bound to a detached object so hook presence
// can be extracted; any top-level failure is reported as a compile error.
func (c *Compiler) Compile(source, displayName string) *CompiledUnit {
	unit := &CompiledUnit{
		DisplayName: displayName,
		Hooks:       make(map[string]bool),
		Schema:      ParseSchema(source),
	}

	chunk, err := parse.Parse(strings.NewReader(source), displayName)
	if err != nil {
		unit.Err = toCompileError(err)
		return unit
	}

	proto, err := lua.Compile(chunk, displayName)
	if err != nil {
		unit.Err = toCompileError(err)
		return unit
	}
	unit.Proto = proto

	probe := scene.NewObject(displayName)
	L := newSandbox(c.env, displayName, probe)
	defer L.Close()

	for _, prop := range unit.Schema {
		L.SetGlobal(prop.Name, goToLua(L, prop.Default))
	}

	fn := L.NewFunctionFromProto(proto)
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		unit.Err = toCompileError(err)
		unit.Proto = nil
		return unit
	}

	for _, name := range HookNames {
		if _, ok := L.GetGlobal(name).(*lua.LFunction); ok {
			unit.Hooks[name] = true
		}
	}
	return unit
}

func toCompileError(err error) *CompileError {
	msg := err.Error()
	line := 0
	if pe, ok := err.(*parse.Error); ok {
		line = pe.Pos.Line
	} else if m := errLinePattern.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
	}
	if apiErr, ok := err.(*lua.ApiError); ok {
		msg = apiErr.Object.String()
		if m := errLinePattern.FindStringSubmatch(msg); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
	}
	return &CompileError{Message: msg, Line: line}
}

// Capability names scripts must not reach for. Matches are advisory hints
// for editor tooling; the sandbox is what actually enforces the policy.
var deniedPatterns = []struct {
	pattern *regexp.Regexp
	hint    string
}{
	{regexp.MustCompile(`\bos\s*[.\[]`), "os access is not available to scripts"},
	{regexp.MustCompile(`\bio\s*[.\[]`), "io access is not available to scripts"},
	{regexp.MustCompile(`\brequire\s*\(`), "require is not available to scripts"},
	{regexp.MustCompile(`\bdofile\s*\(`), "dofile is not available to scripts"},
	{regexp.MustCompile(`\bloadfile\s*\(`), "loadfile is not available to scripts"},
	{regexp.MustCompile(`\bloadstring\s*\(`), "loadstring is not available to scripts"},
	{regexp.MustCompile(`\bload\s*\(`), "load is not available to scripts"},
	{regexp.MustCompile(`\bsetmetatable\s*\(`), "metatable access is not available to scripts"},
	{regexp.MustCompile(`\bgetmetatable\s*\(`), "metatable access is not available to scripts"},
	{regexp.MustCompile(`\brawset\s*\(`), "raw table access is not available to scripts"},
	{regexp.MustCompile(`\bcoroutine\s*[.\[]`), "coroutines are not available to scripts"},
	{regexp.MustCompile(`\bcollectgarbage\s*\(`), "collectgarbage is not available to scripts"},
	{regexp.MustCompile(`\bdebug\s*[.\[]`), "debug access is not available to scripts"},
}

// Validate is an advisory pre-flight check: errors are syntax failures,
// warnings flag denied capability names. Warnings never block compilation.
func (c *Compiler) Validate(source string) (errors []string, warnings []string) {
	if _, err := parse.Parse(strings.NewReader(source), "validate"); err != nil {
		errors = append(errors, err.Error())
	}

	for i, line := range strings.Split(source, "\n") {
		code := line
		if idx := strings.Index(code, "--"); idx >= 0 {
			code = code[:idx]
		}
		for _, denied := range deniedPatterns {
			if denied.pattern.MatchString(code) {
				warnings = append(warnings, "line "+strconv.Itoa(i+1)+": "+denied.hint)
			}
		}
	}
	return errors, warnings
}
