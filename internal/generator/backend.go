package generator

import (
	"classgen/internal/emitter"
	"classgen/internal/model"
)

// Backend holds the target-specific hooks of the generator. Nil hooks fall back to
// the prototype-based defaults.
type Backend struct {
	// FinishConstructor completes the constructor of c once all members are
	// declared. It runs before the class is emitted.
	FinishConstructor func(c *model.ClassModel) error

	// DeclareVariable places the lowered non-constant initializer expr of field t.
	// It reports whether the class now needs a static initializer.
	DeclareVariable func(c *model.ClassModel, t *model.Trait, static bool, expr string) bool

	// LooseStatement places a statement found directly in a class body. It reports
	// whether the class now needs a static initializer.
	LooseStatement func(c *model.ClassModel, stmt string) bool
}

func (b Backend) withDefaults() Backend {
	if b.FinishConstructor == nil {
		b.FinishConstructor = finishConstructor
	}
	if b.DeclareVariable == nil {
		b.DeclareVariable = declareInitializer
	}
	if b.LooseStatement == nil {
		b.LooseStatement = looseStatement
	}
	return b
}

// finishConstructor moves the queued instance initializers to the front of the
// constructor body and seals it. A class without a declared constructor gets one
// when initializers are queued.
func finishConstructor(c *model.ClassModel) error {
	ctor := c.Constructor
	if len(c.InstanceInits) > 0 {
		if ctor == nil {
			ctor = &model.MethodInfo{Name: c.Name.BaseName}
			c.Constructor = ctor
		}
		if err := ctor.PrependBody(c.InstanceInits...); err != nil {
			return err
		}
		c.InstanceInits = nil
	}
	if ctor != nil {
		ctor.Seal()
	}
	return nil
}

func declareInitializer(c *model.ClassModel, t *model.Trait, static bool, expr string) bool {
	if static {
		c.StaticInits = append(c.StaticInits, emitter.Member(c.FullName(), t.FlatName())+" = "+expr+";")
		return true
	}
	if t.Namespace().IsPrivate() {
		t.Initializer = expr
		return false
	}
	c.InstanceInits = append(c.InstanceInits, emitter.Member("this", t.FlatName())+" = "+expr+";")
	return false
}

func looseStatement(c *model.ClassModel, stmt string) bool {
	c.StaticInits = append(c.StaticInits, stmt)
	return true
}
