package registry

// Snapshot is a point-in-time copy of the registry for metadata writers.
// It is assembled map by map, so it is consistent per category only.
type Snapshot struct {
	Classes            []ClassInfo
	Packages           []string
	TypeHints          map[string]string
	AccessedProperties []string
	Units              map[string]string
	ClassInitVersion   uint64
}

// ClassInfo collects the facts recorded for class.
func (r *Registry) ClassInfo(class string) (ClassInfo, bool) {
	r.classesMu.RLock()
	super, ok := r.classes[class]
	r.classesMu.RUnlock()

	extern, isExtern := r.ExternName(class)
	if !ok && !isExtern {
		return ClassInfo{}, false
	}

	info := ClassInfo{
		Name:         class,
		Super:        super,
		Interfaces:   r.Interfaces(class),
		Extern:       extern,
		HasClassInit: r.HasClassInit(class),
	}
	info.EmittedBy, _ = r.EmittedBy(class)
	return info, true
}

// Snapshot copies the registry's read-side facts.
func (r *Registry) Snapshot() Snapshot {
	seen := make(map[string]struct{})
	var classes []ClassInfo
	add := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		if info, ok := r.ClassInfo(name); ok {
			classes = append(classes, info)
		}
	}
	for _, name := range r.Classes() {
		add(name)
	}
	for _, name := range sortedKeys(r.Externs()) {
		add(name)
	}

	r.accessedMu.RLock()
	accessed := sortedKeys(r.accessed)
	r.accessedMu.RUnlock()

	r.unitIDsMu.RLock()
	units := make(map[string]string, len(r.unitIDs))
	for k, v := range r.unitIDs {
		units[k] = v
	}
	r.unitIDsMu.RUnlock()

	return Snapshot{
		Classes:            classes,
		Packages:           r.Packages(),
		TypeHints:          r.TypeHints(),
		AccessedProperties: accessed,
		Units:              units,
		ClassInitVersion:   r.ClassInitVersion(),
	}
}
