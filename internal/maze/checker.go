// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// AnswerChecker decides whether a submitted answer solves a riddle.
type AnswerChecker interface {
	Check(ctx context.Context, r *Riddle, answer string) (bool, error)
}

// DefaultCheckTimeout bounds a single checker script run.
const DefaultCheckTimeout = 250 * time.Millisecond

// checkFunction is the global a checker script must define.
const checkFunction = "check"

// ScriptChecker compares trimmed answers with the solution, or runs the
// riddle's Lua checker in a sandbox when one is set.
type ScriptChecker struct {
	timeout time.Duration
}

// NewScriptChecker creates a checker. A non-positive timeout selects
// DefaultCheckTimeout.
func NewScriptChecker(timeout time.Duration) *ScriptChecker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &ScriptChecker{timeout: timeout}
}

// Check implements AnswerChecker.
func (c *ScriptChecker) Check(ctx context.Context, r *Riddle, answer string) (bool, error) {
	answer = strings.TrimSpace(answer)
	if r.Checker == "" {
		return matchSolution(r, answer), nil
	}
	return c.runScript(ctx, r, answer)
}

func matchSolution(r *Riddle, answer string) bool {
	solution := strings.TrimSpace(r.Solution)
	if r.IgnoreCase {
		return strings.EqualFold(answer, solution)
	}
	return answer == solution
}

func (c *ScriptChecker) runScript(ctx context.Context, r *Riddle, answer string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	L, err := newSandbox()
	if err != nil {
		return false, oops.Code(CodeCheckerFailed).With("riddle_id", r.ID).Wrap(err)
	}
	defer L.Close()
	L.SetContext(ctx)

	if err := L.DoString(r.Checker); err != nil {
		return false, oops.Code(CodeCheckerFailed).With("riddle_id", r.ID).Wrap(err)
	}
	fn, ok := L.GetGlobal(checkFunction).(*lua.LFunction)
	if !ok {
		return false, oops.Code(CodeCheckerFailed).With("riddle_id", r.ID).
			Errorf("checker does not define %s(answer, solution)", checkFunction)
	}
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true},
		lua.LString(answer), lua.LString(r.Solution)); err != nil {
		return false, oops.Code(CodeCheckerFailed).With("riddle_id", r.ID).Wrap(err)
	}
	result := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(result), nil
}

// CompileChecker reports syntax errors in a checker script without running it.
func CompileChecker(script string) error {
	L, err := newSandbox()
	if err != nil {
		return err
	}
	defer L.Close()
	if _, err := L.LoadString(script); err != nil {
		return oops.Code(CodeInvalidDefinition).Wrap(err)
	}
	return nil
}

// sandboxLibraries are the only libraries a checker can use.
var sandboxLibraries = []struct {
	name string
	open lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedGlobals reach the filesystem or load arbitrary chunks.
var blockedGlobals = []string{"dofile", "loadfile", "loadstring", "load", "require"}

func newSandbox() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true, CallStackSize: 64, RegistrySize: 1024 * 8})
	for _, lib := range sandboxLibraries {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.Code(CodeCheckerFailed).With("library", lib.name).Wrap(err)
		}
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L, nil
}
