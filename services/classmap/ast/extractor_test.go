// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/AleutianAI/classmap/services/classmap/model"
)

// extractSource runs the extractor and fails the test on error.
func extractSource(t *testing.T, src string) model.ModuleClasses {
	t.Helper()
	classes, err := NewPythonExtractor().Extract(context.Background(), []byte(src), "pkg.mod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if classes == nil {
		t.Fatal("expected non-nil classes")
	}
	return classes
}

// raws returns the raw callee of each edge in order.
func raws(calls []model.CallEdge) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Raw)
	}
	return out
}

// methodCalls fetches the calls of class.method, failing if absent.
func methodCalls(t *testing.T, classes model.ModuleClasses, class, method string) []model.CallEdge {
	t.Helper()
	rec, ok := classes[class]
	if !ok {
		t.Fatalf("class %q not found; have %v", class, classes.ClassNames())
	}
	m, ok := rec.Methods[method]
	if !ok {
		t.Fatalf("method %s.%s not found; have %v", class, method, rec.MethodNames())
	}
	return m.Calls
}

const analyzerSample = `
import os

def module_helper():
    os.path.join("a", "b")

class A(Base):
    limit = compute_limit()

    def a(self):
        self.b()
        self.x.y.z()
        B.bb()
        module.A.b()
        foo()

    def b(self):
        return helper(self.a())

class B:
    def bb(self):
        pass

top_level()
`

func TestExtract_NormalizesCallsPerRule(t *testing.T) {
	classes := extractSource(t, analyzerSample)

	calls := methodCalls(t, classes, "A", "a")
	expected := []model.CallEdge{
		{Caller: "A.a", Callee: "A.b", Raw: "self.b"},
		{Caller: "A.a", Callee: "A.x.y.z", Raw: "self.x.y.z"},
		{Caller: "A.a", Callee: "B.bb", Raw: "B.bb"},
		{Caller: "A.a", Callee: "module.A.b", Raw: "module.A.b"},
		{Caller: "A.a", Callee: "foo", Raw: "foo"},
	}
	if !reflect.DeepEqual(calls, expected) {
		t.Errorf("calls mismatch\n got: %+v\nwant: %+v", calls, expected)
	}
}

func TestExtract_OuterCallRecordedBeforeNestedCall(t *testing.T) {
	classes := extractSource(t, analyzerSample)

	got := raws(methodCalls(t, classes, "A", "b"))
	want := []string{"helper", "self.a"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestExtract_NoEdgesOutsideMethods(t *testing.T) {
	classes := extractSource(t, analyzerSample)

	for name, rec := range classes {
		for methodName, m := range rec.Methods {
			for _, c := range m.Calls {
				switch c.Raw {
				case "compute_limit", "top_level", "os.path.join":
					t.Errorf("%s.%s recorded call %q issued outside any method", name, methodName, c.Raw)
				}
			}
		}
	}
	if _, ok := classes["module_helper"]; ok {
		t.Error("free function must not be recorded as a class")
	}
	for _, rec := range classes {
		if _, ok := rec.Methods["module_helper"]; ok {
			t.Error("free function must not be recorded as a method")
		}
	}
}

func TestExtract_ModuleScopeCallsPassThrough(t *testing.T) {
	src := `
class Plain:
    def run(self):
        load()
        cfg.read()
        os.path.exists(p)
`
	classes := extractSource(t, src)
	for _, c := range methodCalls(t, classes, "Plain", "run") {
		if c.Callee != c.Raw {
			t.Errorf("callee %q != raw %q for module-scope call", c.Callee, c.Raw)
		}
	}
}

func TestExtract_ClassRecordShape(t *testing.T) {
	classes := extractSource(t, analyzerSample)

	a := classes["A"]
	if a.Name != "A" || a.Module != "pkg.mod" {
		t.Errorf("unexpected identity: name=%q module=%q", a.Name, a.Module)
	}
	if !reflect.DeepEqual(a.Bases, []string{"Base"}) {
		t.Errorf("bases = %v, want [Base]", a.Bases)
	}
	if got := a.MethodNames(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("methods = %v, want [a b]", got)
	}
	if a.Attributes["limit"] != model.UnknownType {
		t.Errorf("expected class attribute 'limit', got %v", a.Attributes)
	}

	b := classes["B"]
	if len(b.Bases) != 0 || b.Bases == nil {
		t.Errorf("expected empty non-nil bases, got %#v", b.Bases)
	}
	if calls := methodCalls(t, classes, "B", "bb"); len(calls) != 0 || calls == nil {
		t.Errorf("expected empty non-nil calls, got %#v", calls)
	}
}

func TestExtract_BaseRendering(t *testing.T) {
	src := `
class Multi(Base, pkg.mixins.Loggable, Generic[T], (Paren), *extra, metaclass=ABCMeta, **kw):
    pass
`
	classes := extractSource(t, src)

	want := []string{"Base", "pkg.mixins.Loggable", "Generic[T]", "Paren", "*extra"}
	if got := classes["Multi"].Bases; !reflect.DeepEqual(got, want) {
		t.Errorf("bases = %v, want %v", got, want)
	}
}

func TestExtract_BaseRenderingCollapsesWhitespace(t *testing.T) {
	src := "class Spaced(make_base(  1,\n    2 )):\n    pass\n"
	classes := extractSource(t, src)

	want := []string{"make_base( 1, 2 )"}
	if got := classes["Spaced"].Bases; !reflect.DeepEqual(got, want) {
		t.Errorf("bases = %v, want %v", got, want)
	}
}

func TestExtract_Attributes(t *testing.T) {
	src := `
class Store:
    kind = "kv"
    a = b = 0
    t, u = 1, 2
    typed: int = 5
    counter = 0
    counter += 1

    def put(self, key, value):
        self.data = {}
        local = value
        self.items[key] = value
`
	classes := extractSource(t, src)

	got := classes["Store"].Attributes
	want := map[string]string{
		"kind":    model.UnknownType,
		"a":       model.UnknownType,
		"b":       model.UnknownType,
		"counter": model.UnknownType,
		"local":   model.UnknownType,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("attributes = %v, want %v", got, want)
	}
}

func TestExtract_ModuleLevelAssignmentsIgnored(t *testing.T) {
	src := `
CONFIG = load()

def setup():
    value = 1

class Empty:
    pass
`
	classes := extractSource(t, src)
	if len(classes["Empty"].Attributes) != 0 {
		t.Errorf("expected no attributes, got %v", classes["Empty"].Attributes)
	}
}

func TestExtract_UnresolvableRootStillVisitsNestedCalls(t *testing.T) {
	src := `
class Chain:
    def go(self):
        get_obj().method()
        self.items[0].run()
        "x".join(parts)
        (self).reset()
`
	classes := extractSource(t, src)

	got := raws(methodCalls(t, classes, "Chain", "go"))
	want := []string{"get_obj", "self.reset"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestExtract_NestedFunctionAttributesToEnclosingMethod(t *testing.T) {
	src := `
class Outer:
    def run(self):
        first()
        def inner():
            nested_call()
        callback = lambda x: self.handle(x)
        last()
`
	classes := extractSource(t, src)

	rec := classes["Outer"]
	if _, ok := rec.Methods["inner"]; ok {
		t.Error("function nested in a method must not become a method")
	}

	got := raws(methodCalls(t, classes, "Outer", "run"))
	want := []string{"first", "nested_call", "self.handle", "last"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if rec.Attributes["callback"] != model.UnknownType {
		t.Errorf("expected 'callback' attribute, got %v", rec.Attributes)
	}
}

func TestExtract_NestedClassRestoresOuterContext(t *testing.T) {
	src := `
class Outer:
    def build(self):
        before()
        class Inner(Outer):
            setting = make_setting()
            def work(self):
                self.step()
        after()
        self.finish()
`
	classes := extractSource(t, src)

	outer := raws(methodCalls(t, classes, "Outer", "build"))
	if want := []string{"before", "after", "self.finish"}; !reflect.DeepEqual(outer, want) {
		t.Errorf("Outer.build calls = %v, want %v", outer, want)
	}

	inner := methodCalls(t, classes, "Inner", "work")
	if len(inner) != 1 || inner[0].Callee != "Inner.step" || inner[0].Caller != "Inner.work" {
		t.Errorf("Inner.work calls = %+v, want one Inner.step edge", inner)
	}
	if !reflect.DeepEqual(classes["Inner"].Bases, []string{"Outer"}) {
		t.Errorf("Inner bases = %v", classes["Inner"].Bases)
	}
	if classes["Inner"].Attributes["setting"] != model.UnknownType {
		t.Error("expected Inner.setting attribute")
	}
	if _, ok := classes["Outer"].Attributes["setting"]; ok {
		t.Error("Inner class attribute leaked to Outer")
	}
}

func TestExtract_ClassInsideFreeFunction(t *testing.T) {
	src := `
def factory():
    build()
    class Made:
        def use(self):
            self.go()
    return Made
`
	classes := extractSource(t, src)

	calls := methodCalls(t, classes, "Made", "use")
	if len(calls) != 1 || calls[0].Callee != "Made.go" {
		t.Errorf("Made.use calls = %+v", calls)
	}
}

func TestExtract_DuplicateMethodLastWriteWins(t *testing.T) {
	src := `
class Dup:
    def m(self):
        first()

    def m(self):
        second()
`
	classes := extractSource(t, src)

	got := raws(methodCalls(t, classes, "Dup", "m"))
	if want := []string{"second"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestExtract_DecoratedAndAsyncMethods(t *testing.T) {
	src := `
@register("svc")
class Service:
    @retry(times=3)
    def fetch(self):
        self.client.get()

    @staticmethod
    def build():
        Service()

    async def stream(self):
        await self.fetch()
`
	classes := extractSource(t, src)

	rec := classes["Service"]
	if got := rec.MethodNames(); !reflect.DeepEqual(got, []string{"build", "fetch", "stream"}) {
		t.Errorf("methods = %v", got)
	}

	fetch := raws(methodCalls(t, classes, "Service", "fetch"))
	if want := []string{"retry", "self.client.get"}; !reflect.DeepEqual(fetch, want) {
		t.Errorf("fetch calls = %v, want %v", fetch, want)
	}

	build := methodCalls(t, classes, "Service", "build")
	if len(build) != 1 || build[0].Callee != "Service" {
		t.Errorf("build calls = %+v", build)
	}

	stream := methodCalls(t, classes, "Service", "stream")
	if len(stream) != 1 || stream[0].Callee != "Service.fetch" {
		t.Errorf("stream calls = %+v", stream)
	}

	for _, m := range rec.Methods {
		for _, c := range m.Calls {
			if c.Raw == "register" {
				t.Error("class decorator call must not be attributed to a method")
			}
		}
	}
}

func TestExtract_DefaultArgumentCallsBelongToMethod(t *testing.T) {
	src := `
class Conf:
    def load(self, path=default_path()):
        read(path)
`
	classes := extractSource(t, src)

	got := raws(methodCalls(t, classes, "Conf", "load"))
	if want := []string{"default_path", "read"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestExtract_EmptyAndClasslessFiles(t *testing.T) {
	for _, src := range []string{"", "x = 1\nprint(x)\n", "def f():\n    return g()\n"} {
		classes := extractSource(t, src)
		if len(classes) != 0 {
			t.Errorf("expected no classes for %q, got %v", src, classes.ClassNames())
		}
	}
}

func TestExtract_SyntaxErrorRejectsWholeFile(t *testing.T) {
	src := `
class Good:
    def ok(self):
        pass

class Broken(:
    def
`
	classes, err := NewPythonExtractor().Extract(context.Background(), []byte(src), "broken")
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected ErrSyntax, got %v", err)
	}
	if classes != nil {
		t.Errorf("expected no partial result, got %v", classes.ClassNames())
	}
}

func TestExtract_InvalidUTF8(t *testing.T) {
	_, err := NewPythonExtractor().Extract(context.Background(), []byte{0xff, 0xfe, 'x'}, "bin")
	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
}

func TestExtract_FileTooLarge(t *testing.T) {
	ex := NewPythonExtractor(WithMaxFileSize(16))
	_, err := ex.Extract(context.Background(), []byte(strings.Repeat("x = 1\n", 10)), "big")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestExtract_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPythonExtractor().Extract(ctx, []byte("class A:\n    pass\n"), "m")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExtract_MaxDepthSkipsDeepSubtrees(t *testing.T) {
	src := `
class Deep:
    def m(self):
        shallow()
`
	// Depth 1 reaches only the module's direct children.
	classes, err := NewPythonExtractor(WithMaxDepth(1)).Extract(context.Background(), []byte(src), "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, ok := classes["Deep"]
	if !ok {
		t.Fatal("expected class Deep to be registered at depth 1")
	}
	if len(rec.Methods) != 0 {
		t.Errorf("expected method below depth limit to be skipped, got %v", rec.MethodNames())
	}
}

func TestExtract_ConcurrentUse(t *testing.T) {
	ex := NewPythonExtractor()
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			classes, err := ex.Extract(context.Background(), []byte(analyzerSample), "pkg.mod")
			if err == nil && len(classes) != 2 {
				err = errors.New("unexpected class count")
			}
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent extract: %v", err)
		}
	}
}
