package model

import (
	"fmt"

	"classgen/internal/diag"
)

// TraitKind represents the category of a class member declaration.
type TraitKind int

const (
	TraitVar TraitKind = iota + 1
	TraitConst
	TraitMethod
	TraitFunction
	TraitGetter
	TraitSetter
	TraitClass
)

var traitKindNames = map[TraitKind]string{
	TraitVar:      "var",
	TraitConst:    "const",
	TraitMethod:   "method",
	TraitFunction: "function",
	TraitGetter:   "getter",
	TraitSetter:   "setter",
	TraitClass:    "class",
}

func (k TraitKind) String() string {
	if s, ok := traitKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TraitKind(%d)", int(k))
}

// Bucket groups trait kinds that share one flattened property namespace.
type Bucket int

const (
	BucketField Bucket = iota + 1
	BucketMethod
	BucketGetter
	BucketSetter
	BucketClass
)

// Bucket returns the deduplication bucket of k.
func (k TraitKind) Bucket() (Bucket, error) {
	switch k {
	case TraitVar, TraitConst:
		return BucketField, nil
	case TraitMethod, TraitFunction:
		return BucketMethod, nil
	case TraitGetter:
		return BucketGetter, nil
	case TraitSetter:
		return BucketSetter, nil
	case TraitClass:
		return BucketClass, nil
	}
	return 0, diag.Internalf("", "", "unrecognized trait kind %d", int(k))
}

// IsField reports whether the kind declares a data slot.
func (k TraitKind) IsField() bool { return k == TraitVar || k == TraitConst }

// IsFunction reports whether the kind carries a MethodInfo.
func (k TraitKind) IsFunction() bool {
	return k == TraitMethod || k == TraitFunction || k == TraitGetter || k == TraitSetter
}

// Trait is one member declaration of a class or package.
type Trait struct {
	Kind     TraitKind
	Name     QualifiedName
	Type     *TypeRef
	Metadata []Metadata
	Override bool
	Final    bool
	Method   *MethodInfo

	// Initializer is the lowered non-constant initializer of a private instance
	// field, assigned in the constructor.
	Initializer string

	flat    string
	bucket  Bucket
	slot    *Constant
	slotSet bool
}

// NewTrait validates kind and name and returns a fresh trait.
func NewTrait(kind TraitKind, name QualifiedName) (*Trait, error) {
	bucket, err := kind.Bucket()
	if err != nil {
		return nil, diag.AddContext(err, diag.CtxMember, name.BaseName)
	}
	flat, err := FlattenedName(name)
	if err != nil {
		return nil, err
	}
	return &Trait{Kind: kind, Name: name, flat: flat, bucket: bucket}, nil
}

// FlatName is the property name the trait occupies on the target object.
func (t *Trait) FlatName() string { return t.flat }

// Bucket returns the deduplication bucket.
func (t *Trait) Bucket() Bucket { return t.bucket }

// Namespace returns the declared visibility namespace.
func (t *Trait) Namespace() Namespace { return t.Name.Single() }

// SetSlotValue attaches a folded constant. It may succeed only once.
func (t *Trait) SetSlotValue(c *Constant) error {
	if t.slotSet {
		return diag.Internalf("", t.Name.BaseName, "slot value already assigned")
	}
	t.slot = c
	t.slotSet = true
	return nil
}

// SlotValue returns the folded constant, if any.
func (t *Trait) SlotValue() (*Constant, bool) {
	return t.slot, t.slotSet
}

// AddMetadata appends a metadata tag.
func (t *Trait) AddMetadata(m Metadata) {
	t.Metadata = append(t.Metadata, m)
}

// TraitStore is the ordered member list of one side (instance or static) of a class.
type TraitStore struct {
	traits []*Trait
	index  map[string]*Trait
}

func NewTraitStore() *TraitStore {
	return &TraitStore{index: make(map[string]*Trait)}
}

func storeKey(b Bucket, flat string) string {
	return fmt.Sprintf("%d:%s", int(b), flat)
}

// Add appends t unless a trait with the same bucket and flattened name exists, in
// which case the existing handle is returned and added is false.
func (s *TraitStore) Add(t *Trait) (handle *Trait, added bool) {
	key := storeKey(t.bucket, t.flat)
	if existing, ok := s.index[key]; ok {
		return existing, false
	}
	s.index[key] = t
	s.traits = append(s.traits, t)
	return t, true
}

// Lookup finds a trait by bucket and flattened name.
func (s *TraitStore) Lookup(b Bucket, flat string) (*Trait, bool) {
	t, ok := s.index[storeKey(b, flat)]
	return t, ok
}

// Traits returns the traits in declaration order.
func (s *TraitStore) Traits() []*Trait {
	out := make([]*Trait, len(s.traits))
	copy(out, s.traits)
	return out
}

// Len returns the number of traits.
func (s *TraitStore) Len() int { return len(s.traits) }

// Param is a single formal parameter.
type Param struct {
	Name string   `yaml:"name" json:"name"`
	Type *TypeRef `yaml:"type" json:"type"`
}

// MethodInfo describes a function signature and its lowered body.
// It is immutable after Seal.
type MethodInfo struct {
	Name       string
	Params     []Param
	HasRest    bool
	ReturnType *TypeRef
	Defaults   []*Constant
	Body       []string

	sealed bool
}

func (m *MethodInfo) checkOpen(op string) error {
	if m.sealed {
		return diag.Internalf("", m.Name, "%s on sealed method", op)
	}
	return nil
}

// AddParam appends a parameter.
func (m *MethodInfo) AddParam(p Param) error {
	if err := m.checkOpen("add param"); err != nil {
		return err
	}
	m.Params = append(m.Params, p)
	return nil
}

// SetDefaults installs the default-value pool, aligned to the trailing fixed params.
func (m *MethodInfo) SetDefaults(defaults []*Constant) error {
	if err := m.checkOpen("set defaults"); err != nil {
		return err
	}
	if len(defaults) > len(m.FixedParams()) {
		return diag.Internalf("", m.Name, "%d defaults for %d parameters", len(defaults), len(m.FixedParams()))
	}
	m.Defaults = defaults
	return nil
}

// SetReturnType assigns the return type after body reduction.
func (m *MethodInfo) SetReturnType(t *TypeRef) error {
	if err := m.checkOpen("set return type"); err != nil {
		return err
	}
	m.ReturnType = t
	return nil
}

// SetBody installs the lowered body statements.
func (m *MethodInfo) SetBody(body []string) error {
	if err := m.checkOpen("set body"); err != nil {
		return err
	}
	m.Body = body
	return nil
}

// PrependBody inserts statements ahead of the current body.
func (m *MethodInfo) PrependBody(stmts ...string) error {
	if err := m.checkOpen("prepend body"); err != nil {
		return err
	}
	m.Body = append(append([]string{}, stmts...), m.Body...)
	return nil
}

// Seal freezes the method.
func (m *MethodInfo) Seal() { m.sealed = true }

// Sealed reports whether Seal was called.
func (m *MethodInfo) Sealed() bool { return m.sealed }

// FixedParams returns the parameters excluding the rest parameter.
func (m *MethodInfo) FixedParams() []Param {
	if m.HasRest && len(m.Params) > 0 {
		return m.Params[:len(m.Params)-1]
	}
	return m.Params
}

// RestParam returns the rest parameter, if any.
func (m *MethodInfo) RestParam() (Param, bool) {
	if m.HasRest && len(m.Params) > 0 {
		return m.Params[len(m.Params)-1], true
	}
	return Param{}, false
}

// DefaultFor returns the default value of fixed parameter i.
func (m *MethodInfo) DefaultFor(i int) (*Constant, bool) {
	fixed := m.FixedParams()
	first := len(fixed) - len(m.Defaults)
	if i < first || i >= len(fixed) {
		return nil, false
	}
	return m.Defaults[i-first], true
}

// ClassModel is the per-class accumulation target of the generator.
type ClassModel struct {
	Name          QualifiedName
	Super         *QualifiedName
	Interfaces    []QualifiedName
	Instance      *TraitStore
	Static        *TraitStore
	Constructor   *MethodInfo
	Metadata      []Metadata
	IsProtected   bool
	IsDynamic     bool
	IsFinal       bool
	IsInterface   bool
	Extern        string
	SuperCall     string
	Imports       []string
	InstanceInits []string
	StaticInits   []string
}

// NewClassModel returns a class model with empty trait stores.
func NewClassModel(name QualifiedName) *ClassModel {
	return &ClassModel{
		Name:     name,
		Instance: NewTraitStore(),
		Static:   NewTraitStore(),
	}
}

// Store returns the static or instance trait store.
func (c *ClassModel) Store(static bool) *TraitStore {
	if static {
		return c.Static
	}
	return c.Instance
}

// FullName returns the dotted class name.
func (c *ClassModel) FullName() string { return c.Name.FullName() }

// PackageModel accumulates package-level functions and variables of one unit.
type PackageModel struct {
	Name  string
	Store *TraitStore
	Inits []string
}

func NewPackageModel(name string) *PackageModel {
	return &PackageModel{Name: name, Store: NewTraitStore()}
}
