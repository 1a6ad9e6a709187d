// Package registry holds the facts shared by all units of a compilation session.
//
// Every map is guarded by its own RWMutex so unrelated fact categories never contend.
// Registration is idempotent; no method calls out of the package while holding a lock.
package registry

import (
	"sort"
	"strings"
	"sync"

	"classgen/internal/model"

	"github.com/google/uuid"
)

// Definition summarizes a declared member for cross-unit shadow checks.
type Definition struct {
	Class  string
	Name   string
	Kind   model.TraitKind
	NsKind model.NamespaceKind
	Static bool
}

// IsPrivate reports whether the member is hidden from subclasses.
func (d Definition) IsPrivate() bool {
	return d.NsKind == model.NsPrivate || d.NsKind == model.NsClassPrivate
}

// ClassInfo is a read-only view over the facts recorded for one class.
type ClassInfo struct {
	Name         string
	Super        string
	Interfaces   []string
	Extern       string
	HasClassInit bool
	EmittedBy    string
}

// Option configures a Registry.
type Option func(*Registry)

// WithIgnoredPrefixes sets the synthetic or library prefixes registration skips.
func WithIgnoredPrefixes(prefixes ...string) Option {
	return func(r *Registry) {
		r.ignored = append([]string(nil), prefixes...)
	}
}

// WithRootClass sets the reserved root class that never needs a class-init.
func WithRootClass(name string) Option {
	return func(r *Registry) { r.rootClass = name }
}

// Registry is the session-scoped store of cross-unit facts.
type Registry struct {
	ignored   []string
	rootClass string

	classesMu sync.RWMutex
	classes   map[string]string

	interfacesMu sync.RWMutex
	interfaces   map[string][]string

	packagesMu sync.RWMutex
	packages   map[string]struct{}

	externsMu sync.RWMutex
	externs   map[string]string

	definitionsMu sync.RWMutex
	definitions   map[string]map[string]Definition

	fragmentsMu sync.RWMutex
	fragments   map[string]string

	classInitMu      sync.RWMutex
	classInits       map[string]struct{}
	classInitVersion uint64

	emittedMu sync.RWMutex
	emitted   map[string]string

	typeHintsMu sync.RWMutex
	typeHints   map[string]string

	accessedMu sync.RWMutex
	accessed   map[string]struct{}

	propNamesMu sync.RWMutex
	propNames   map[string]map[string]struct{}

	unitIDsMu sync.RWMutex
	unitIDs   map[string]string

	scriptInitsMu sync.RWMutex
	scriptInits   map[string][]string
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.init()
	return r
}

func (r *Registry) init() {
	r.classes = make(map[string]string)
	r.interfaces = make(map[string][]string)
	r.packages = make(map[string]struct{})
	r.externs = make(map[string]string)
	r.definitions = make(map[string]map[string]Definition)
	r.fragments = make(map[string]string)
	r.classInits = make(map[string]struct{})
	r.emitted = make(map[string]string)
	r.typeHints = make(map[string]string)
	r.accessed = make(map[string]struct{})
	r.propNames = make(map[string]map[string]struct{})
	r.unitIDs = make(map[string]string)
	r.scriptInits = make(map[string][]string)
}

func (r *Registry) isIgnored(name string) bool {
	if name == "" {
		return true
	}
	for _, p := range r.ignored {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// RegisterClass records class and its superclass ("" for none).
func (r *Registry) RegisterClass(class, super string) {
	if r.isIgnored(class) {
		return
	}
	r.classesMu.Lock()
	defer r.classesMu.Unlock()
	if prev, ok := r.classes[class]; ok && super == "" {
		super = prev
	}
	r.classes[class] = super
}

// SuperClass returns the registered superclass of class.
func (r *Registry) SuperClass(class string) (string, bool) {
	r.classesMu.RLock()
	defer r.classesMu.RUnlock()
	super, ok := r.classes[class]
	return super, ok && super != ""
}

// HasClass reports whether class was registered.
func (r *Registry) HasClass(class string) bool {
	r.classesMu.RLock()
	defer r.classesMu.RUnlock()
	_, ok := r.classes[class]
	return ok
}

// Classes returns the registered class names, sorted.
func (r *Registry) Classes() []string {
	r.classesMu.RLock()
	defer r.classesMu.RUnlock()
	return sortedKeys(r.classes)
}

// RegisterInterface records that class implements iface.
func (r *Registry) RegisterInterface(class, iface string) {
	if class == "" || iface == "" {
		return
	}
	r.interfacesMu.Lock()
	defer r.interfacesMu.Unlock()
	for _, existing := range r.interfaces[class] {
		if existing == iface {
			return
		}
	}
	r.interfaces[class] = append(r.interfaces[class], iface)
}

// Interfaces returns the interfaces class implements, in registration order.
func (r *Registry) Interfaces(class string) []string {
	r.interfacesMu.RLock()
	defer r.interfacesMu.RUnlock()
	return append([]string(nil), r.interfaces[class]...)
}

// RegisterPackage records a package name.
func (r *Registry) RegisterPackage(pkg string) {
	if r.isIgnored(pkg) {
		return
	}
	r.packagesMu.Lock()
	r.packages[pkg] = struct{}{}
	r.packagesMu.Unlock()
}

// HasPackage reports whether pkg was registered.
func (r *Registry) HasPackage(pkg string) bool {
	r.packagesMu.RLock()
	defer r.packagesMu.RUnlock()
	_, ok := r.packages[pkg]
	return ok
}

// Packages returns the registered packages, sorted.
func (r *Registry) Packages() []string {
	r.packagesMu.RLock()
	defer r.packagesMu.RUnlock()
	return sortedKeys(r.packages)
}

// RegisterExtern binds class to an externally provided target name.
func (r *Registry) RegisterExtern(class, target string) {
	if r.isIgnored(class) {
		return
	}
	if target == "" {
		target = class
	}
	r.externsMu.Lock()
	r.externs[class] = target
	r.externsMu.Unlock()
}

// IsExtern reports whether class is provided externally.
func (r *Registry) IsExtern(class string) bool {
	r.externsMu.RLock()
	defer r.externsMu.RUnlock()
	_, ok := r.externs[class]
	return ok
}

// ExternName returns the target name bound to an extern class.
func (r *Registry) ExternName(class string) (string, bool) {
	r.externsMu.RLock()
	defer r.externsMu.RUnlock()
	name, ok := r.externs[class]
	return name, ok
}

// Externs returns a copy of the extern bindings.
func (r *Registry) Externs() map[string]string {
	r.externsMu.RLock()
	defer r.externsMu.RUnlock()
	out := make(map[string]string, len(r.externs))
	for k, v := range r.externs {
		out[k] = v
	}
	return out
}

// RegisterDefinition records a member summary of def.Class.
func (r *Registry) RegisterDefinition(def Definition) {
	if def.Class == "" || def.Name == "" {
		return
	}
	r.definitionsMu.Lock()
	defer r.definitionsMu.Unlock()
	members, ok := r.definitions[def.Class]
	if !ok {
		members = make(map[string]Definition)
		r.definitions[def.Class] = members
	}
	if _, exists := members[def.Name]; !exists {
		members[def.Name] = def
	}
}

// Definition returns the member summary of class.member.
func (r *Registry) Definition(class, member string) (Definition, bool) {
	r.definitionsMu.RLock()
	defer r.definitionsMu.RUnlock()
	def, ok := r.definitions[class][member]
	return def, ok
}

// RegisterFragment stores the emitted text of a unit, replacing earlier passes.
func (r *Registry) RegisterFragment(unit, text string) {
	r.fragmentsMu.Lock()
	r.fragments[unit] = text
	r.fragmentsMu.Unlock()
}

// Fragment returns the emitted text of a unit.
func (r *Registry) Fragment(unit string) (string, bool) {
	r.fragmentsMu.RLock()
	defer r.fragmentsMu.RUnlock()
	text, ok := r.fragments[unit]
	return text, ok
}

// RegisterClassInit marks class as requiring a static-init call before first use.
// It reports whether the fact is new. The root class is never registered.
func (r *Registry) RegisterClassInit(class string) bool {
	if class == "" || class == r.rootClass {
		return false
	}
	r.classInitMu.Lock()
	defer r.classInitMu.Unlock()
	if _, ok := r.classInits[class]; ok {
		return false
	}
	r.classInits[class] = struct{}{}
	r.classInitVersion++
	return true
}

// HasClassInit reports whether class requires a static-init call.
func (r *Registry) HasClassInit(class string) bool {
	r.classInitMu.RLock()
	defer r.classInitMu.RUnlock()
	_, ok := r.classInits[class]
	return ok
}

// HasAnyClassInit reports whether any class requires a static-init call.
func (r *Registry) HasAnyClassInit() bool {
	r.classInitMu.RLock()
	defer r.classInitMu.RUnlock()
	return len(r.classInits) > 0
}

// ClassInits returns the classes requiring a static-init call, sorted.
func (r *Registry) ClassInits() []string {
	r.classInitMu.RLock()
	defer r.classInitMu.RUnlock()
	return sortedKeys(r.classInits)
}

// ClassInitVersion increases every time a new class-init fact is recorded.
func (r *Registry) ClassInitVersion() uint64 {
	r.classInitMu.RLock()
	defer r.classInitMu.RUnlock()
	return r.classInitVersion
}

// RegisterEmittedClass claims class for unitID. It returns false and the current
// owner when another unit already emitted the class.
func (r *Registry) RegisterEmittedClass(class, unitID string) (owner string, ok bool) {
	r.emittedMu.Lock()
	defer r.emittedMu.Unlock()
	if prev, exists := r.emitted[class]; exists && prev != unitID {
		return prev, false
	}
	r.emitted[class] = unitID
	return unitID, true
}

// HasClassBeenEmitted reports whether any unit emitted class.
func (r *Registry) HasClassBeenEmitted(class string) bool {
	r.emittedMu.RLock()
	defer r.emittedMu.RUnlock()
	_, ok := r.emitted[class]
	return ok
}

// EmittedBy returns the id of the unit that emitted class.
func (r *Registry) EmittedBy(class string) (string, bool) {
	r.emittedMu.RLock()
	defer r.emittedMu.RUnlock()
	id, ok := r.emitted[class]
	return id, ok
}

// RegisterTypeHint records the declared type of a qualified variable.
func (r *Registry) RegisterTypeHint(name, typ string) {
	if name == "" || typ == "" {
		return
	}
	r.typeHintsMu.Lock()
	r.typeHints[name] = typ
	r.typeHintsMu.Unlock()
}

// TypeHint returns the declared type of a qualified variable.
func (r *Registry) TypeHint(name string) (string, bool) {
	r.typeHintsMu.RLock()
	defer r.typeHintsMu.RUnlock()
	typ, ok := r.typeHints[name]
	return typ, ok
}

// TypeHints returns a copy of all type hints.
func (r *Registry) TypeHints() map[string]string {
	r.typeHintsMu.RLock()
	defer r.typeHintsMu.RUnlock()
	out := make(map[string]string, len(r.typeHints))
	for k, v := range r.typeHints {
		out[k] = v
	}
	return out
}

// RegisterAccessedProperty records a property name read through a dynamic receiver.
func (r *Registry) RegisterAccessedProperty(name string) {
	if name == "" {
		return
	}
	r.accessedMu.Lock()
	r.accessed[name] = struct{}{}
	r.accessedMu.Unlock()
}

// IsAccessedProperty reports whether name was accessed anywhere.
func (r *Registry) IsAccessedProperty(name string) bool {
	r.accessedMu.RLock()
	defer r.accessedMu.RUnlock()
	_, ok := r.accessed[name]
	return ok
}

// RegisterPropertyName records that owner declares a property called name.
func (r *Registry) RegisterPropertyName(owner, name string) {
	if name == "" {
		return
	}
	r.propNamesMu.Lock()
	defer r.propNamesMu.Unlock()
	owners, ok := r.propNames[name]
	if !ok {
		owners = make(map[string]struct{})
		r.propNames[name] = owners
	}
	owners[owner] = struct{}{}
}

// IsUniquePropertyName reports whether exactly one owner declares name.
func (r *Registry) IsUniquePropertyName(name string) bool {
	r.propNamesMu.RLock()
	defer r.propNamesMu.RUnlock()
	return len(r.propNames[name]) == 1
}

// UnitID returns the stable id of a unit path, allocating one on first use.
func (r *Registry) UnitID(path string) string {
	r.unitIDsMu.RLock()
	id, ok := r.unitIDs[path]
	r.unitIDsMu.RUnlock()
	if ok {
		return id
	}

	r.unitIDsMu.Lock()
	defer r.unitIDsMu.Unlock()
	if id, ok := r.unitIDs[path]; ok {
		return id
	}
	id = uuid.New().String()
	r.unitIDs[path] = id
	return id
}

// RegisterScriptInit stores the loose top-level statements of a unit, replacing
// those of an earlier pass.
func (r *Registry) RegisterScriptInit(unit string, stmts []string) {
	r.scriptInitsMu.Lock()
	defer r.scriptInitsMu.Unlock()
	if len(stmts) == 0 {
		delete(r.scriptInits, unit)
		return
	}
	r.scriptInits[unit] = append([]string(nil), stmts...)
}

// ScriptInits returns the script-init statements of a unit.
func (r *Registry) ScriptInits(unit string) []string {
	r.scriptInitsMu.RLock()
	defer r.scriptInitsMu.RUnlock()
	return append([]string(nil), r.scriptInits[unit]...)
}

// Reset clears every fact. It is the only way facts are removed.
func (r *Registry) Reset() {
	locks := []*sync.RWMutex{
		&r.classesMu, &r.interfacesMu, &r.packagesMu, &r.externsMu, &r.definitionsMu,
		&r.fragmentsMu, &r.classInitMu, &r.emittedMu, &r.typeHintsMu, &r.accessedMu,
		&r.propNamesMu, &r.unitIDsMu, &r.scriptInitsMu,
	}
	for _, l := range locks {
		l.Lock()
	}
	r.init()
	r.classInitVersion = 0
	for i := len(locks) - 1; i >= 0; i-- {
		locks[i].Unlock()
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
