package registry

import (
	"fmt"
	"sync"
	"testing"

	"classgen/internal/model"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return New(WithIgnoredPrefixes("goog", "__AS3__"), WithRootClass("Object"))
}

func TestRegisterIgnoresLibraryPrefixes(t *testing.T) {
	r := newTestRegistry()

	r.RegisterPackage("goog.events")
	r.RegisterPackage("app")
	r.RegisterPackage("")
	r.RegisterClass("__AS3__.vec.Vector", "")
	r.RegisterClass("app.A", "app.Base")
	r.RegisterExtern("goog.Foo", "")

	assert.Equal(t, []string{"app"}, r.Packages())
	assert.False(t, r.HasPackage("goog.events"))
	assert.Equal(t, []string{"app.A"}, r.Classes())
	assert.False(t, r.IsExtern("goog.Foo"))

	super, ok := r.SuperClass("app.A")
	require.True(t, ok)
	assert.Equal(t, "app.Base", super)
}

func TestRegistrationIsIdempotent(t *testing.T) {
	r := newTestRegistry()

	for i := 0; i < 3; i++ {
		r.RegisterClass("app.A", "app.Base")
		r.RegisterInterface("app.A", "app.IFoo")
		r.RegisterPackage("app")
		r.RegisterExtern("app.Ext", "window.Ext")
	}
	assert.True(t, r.RegisterClassInit("app.A"))
	assert.False(t, r.RegisterClassInit("app.A"))

	assert.Len(t, r.Classes(), 1)
	assert.Equal(t, []string{"app.IFoo"}, r.Interfaces("app.A"))
	assert.Len(t, r.Packages(), 1)
	assert.Equal(t, map[string]string{"app.Ext": "window.Ext"}, r.Externs())
	assert.Equal(t, uint64(1), r.ClassInitVersion())
}

func TestRootClassNeverNeedsClassInit(t *testing.T) {
	r := newTestRegistry()
	assert.False(t, r.RegisterClassInit("Object"))
	assert.False(t, r.HasAnyClassInit())
	assert.Equal(t, uint64(0), r.ClassInitVersion())

	assert.True(t, r.RegisterClassInit("app.B"))
	assert.True(t, r.HasAnyClassInit())
	assert.Equal(t, []string{"app.B"}, r.ClassInits())
}

func TestEmittedClassOwnership(t *testing.T) {
	r := newTestRegistry()
	u1 := r.UnitID("a.as")
	u2 := r.UnitID("b.as")
	assert.NotEqual(t, u1, u2)
	assert.Equal(t, u1, r.UnitID("a.as"))

	owner, ok := r.RegisterEmittedClass("app.A", u1)
	assert.True(t, ok)
	assert.Equal(t, u1, owner)

	// a second pass of the same unit may emit again
	_, ok = r.RegisterEmittedClass("app.A", u1)
	assert.True(t, ok)

	owner, ok = r.RegisterEmittedClass("app.A", u2)
	assert.False(t, ok)
	assert.Equal(t, u1, owner)
	assert.True(t, r.HasClassBeenEmitted("app.A"))
}

func TestDefinitionsAndProperties(t *testing.T) {
	r := newTestRegistry()
	r.RegisterDefinition(Definition{Class: "app.Base", Name: "x", Kind: model.TraitVar, NsKind: model.NsPrivate})
	r.RegisterDefinition(Definition{Class: "app.Base", Name: "x", Kind: model.TraitVar, NsKind: model.NsPublic})

	def, ok := r.Definition("app.Base", "x")
	require.True(t, ok)
	assert.True(t, def.IsPrivate())
	_, ok = r.Definition("app.Base", "y")
	assert.False(t, ok)

	r.RegisterPropertyName("app.A", "label")
	r.RegisterPropertyName("app.A", "label")
	assert.True(t, r.IsUniquePropertyName("label"))
	r.RegisterPropertyName("app.B", "label")
	assert.False(t, r.IsUniquePropertyName("label"))

	r.RegisterAccessedProperty("width")
	assert.True(t, r.IsAccessedProperty("width"))

	r.RegisterTypeHint("app.A.count", "int")
	hint, ok := r.TypeHint("app.A.count")
	require.True(t, ok)
	assert.Equal(t, "int", hint)

	r.RegisterScriptInit("a.as", []string{"trace(1);"})
	assert.Equal(t, []string{"trace(1);"}, r.ScriptInits("a.as"))
	r.RegisterScriptInit("a.as", nil)
	assert.Empty(t, r.ScriptInits("a.as"))

	r.RegisterFragment("a.as", "x")
	r.RegisterFragment("a.as", "y")
	text, ok := r.Fragment("a.as")
	require.True(t, ok)
	assert.Equal(t, "y", text)
}

func TestConcurrentRegistration(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				class := fmt.Sprintf("app.C%d", i)
				r.RegisterClass(class, "app.Base")
				r.RegisterPackage("app")
				r.RegisterClassInit(class)
				r.RegisterEmittedClass(class, r.UnitID(fmt.Sprintf("u%d.as", i)))
				r.RegisterPropertyName(class, fmt.Sprintf("p%d", w))
				_ = r.HasClassInit(class)
				_ = r.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	assert.Len(t, r.Classes(), 50)
	assert.Len(t, r.ClassInits(), 50)
	assert.Equal(t, uint64(50), r.ClassInitVersion())
}

func TestSnapshotAndReset(t *testing.T) {
	r := newTestRegistry()
	r.RegisterClass("app.A", "app.Base")
	r.RegisterInterface("app.A", "app.IFoo")
	r.RegisterClassInit("app.A")
	r.RegisterExtern("app.Ext", "Ext")
	id := r.UnitID("a.as")
	r.RegisterEmittedClass("app.A", id)

	snap := r.Snapshot()
	want := []ClassInfo{
		{Name: "app.A", Super: "app.Base", Interfaces: []string{"app.IFoo"}, HasClassInit: true, EmittedBy: id},
		{Name: "app.Ext", Interfaces: []string{}, Extern: "Ext"},
	}
	if diff := cmp.Diff(want, snap.Classes, cmpInterfaces); diff != "" {
		t.Errorf("snapshot classes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(1), snap.ClassInitVersion)
	assert.Equal(t, id, snap.Units["a.as"])

	r.Reset()
	assert.Empty(t, r.Classes())
	assert.False(t, r.HasAnyClassInit())
	assert.False(t, r.HasClassBeenEmitted("app.A"))
	assert.Equal(t, uint64(0), r.ClassInitVersion())
	assert.NotEqual(t, id, r.UnitID("a.as"))
}

// cmpInterfaces treats nil and empty interface lists as equal.
var cmpInterfaces = cmp.Comparer(func(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
})
