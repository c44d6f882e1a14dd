package scene

import (
	"fmt"
	"reflect"

	"github.com/go-gl/mathgl/mgl32"
)

// Object is a ray-traceable mesh instance registered by the host.
// Objects and their transforms are identified with ==, so their dynamic
// types must be comparable (typically pointers).
type Object interface {
	// Mesh returns the shared mesh. nil is treated as an empty mesh.
	Mesh() *Mesh

	// LocalToWorld returns the object's world matrix.
	LocalToWorld() mgl32.Mat4

	// Transform returns the transform watched for changes, or nil.
	Transform() Transform
}

// Instance places a shared mesh in the world through a Node.
type Instance struct {
	*Node

	mesh *Mesh
}

var _ Object = (*Instance)(nil)

// NewInstance creates an instance of mesh at the origin.
func NewInstance(mesh *Mesh) *Instance {
	return &Instance{Node: NewNode(), mesh: mesh}
}

// Mesh returns the shared mesh.
func (i *Instance) Mesh() *Mesh { return i.mesh }

// Transform returns the instance's node.
func (i *Instance) Transform() Transform { return i.Node }

// WatchKind classifies a watched transform.
type WatchKind int

const (
	// WatchCamera changes only reset accumulation.
	WatchCamera WatchKind = iota

	// WatchLight changes only reset accumulation.
	WatchLight

	// WatchObject changes reset accumulation and require a geometry
	// rebuild, because object transforms are baked into MeshObject records.
	WatchObject

	watchKindCount
)

// String returns the kind name.
func (k WatchKind) String() string {
	switch k {
	case WatchCamera:
		return "camera"
	case WatchLight:
		return "light"
	case WatchObject:
		return "object"
	default:
		return fmt.Sprintf("WatchKind(%d)", int(k))
	}
}

// Change is the result of a Poll.
type Change struct {
	// Reset is true when any watched transform changed.
	Reset bool

	// Rebuild is true when an object transform changed.
	Rebuild bool
}

// watched counts the watches of one transform per kind.
type watched struct {
	t    Transform
	refs [watchKindCount]int
}

func (w *watched) total() int {
	n := 0
	for _, c := range w.refs {
		n += c
	}
	return n
}

// Registry is the ordered collection of registered objects and procedural
// spheres, plus the set of watched transforms.
//
// Insertion order is the render order and fixes the buffer offsets.
type Registry struct {
	objects []Object
	spheres []Sphere
	watches []watched
	dirty   bool
}

// NewRegistry returns an empty, clean registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends obj and watches its transform. The rebuild flag is set
// even when obj is already registered. Register panics if the dynamic type
// of obj is not comparable.
func (r *Registry) Register(obj Object) {
	r.dirty = true
	if obj == nil {
		return
	}
	if !reflect.TypeOf(obj).Comparable() {
		panic(fmt.Sprintf("scene: object type %T is not comparable", obj))
	}
	if r.indexOf(obj) >= 0 {
		return
	}
	r.objects = append(r.objects, obj)
	if t := obj.Transform(); t != nil {
		r.Watch(t, WatchObject)
	}
}

// Unregister removes obj, keeping the order of the remaining objects, and
// stops watching its transform. The rebuild flag is always set.
func (r *Registry) Unregister(obj Object) {
	r.dirty = true
	i := r.indexOf(obj)
	if i < 0 {
		return
	}
	r.objects = append(r.objects[:i], r.objects[i+1:]...)
	if t := obj.Transform(); t != nil {
		r.unwatch(t, WatchObject)
	}
}

func (r *Registry) indexOf(obj Object) int {
	if obj == nil || !reflect.TypeOf(obj).Comparable() {
		return -1
	}
	for i, o := range r.objects {
		if o == obj {
			return i
		}
	}
	return -1
}

// Objects returns the registered objects in order.
// The slice must not be modified.
func (r *Registry) Objects() []Object { return r.objects }

// Len returns the number of registered objects.
func (r *Registry) Len() int { return len(r.objects) }

// SetSpheres replaces the procedural sphere set. Spheres are accepted in
// order; one that overlaps an already accepted sphere is dropped. It
// returns the number of spheres kept.
func (r *Registry) SetSpheres(spheres []Sphere) int {
	var p Placer
	for _, s := range spheres {
		p.TryPlace(s)
	}
	r.spheres = p.Spheres()
	r.dirty = true
	return len(r.spheres)
}

// Spheres returns the procedural sphere set. The slice must not be modified.
func (r *Registry) Spheres() []Sphere { return r.spheres }

// Watch adds a watch of the given kind on t. Watches are counted: each
// Watch is undone by one Unwatch with the same kind. A transform watched
// as WatchObject requests a rebuild even if it is also the camera or the
// light. Transforms must be comparable.
func (r *Registry) Watch(t Transform, kind WatchKind) {
	if t == nil || kind < 0 || kind >= watchKindCount {
		return
	}
	if !reflect.TypeOf(t).Comparable() {
		panic(fmt.Sprintf("scene: transform type %T is not comparable", t))
	}
	if w := r.find(t); w != nil {
		w.refs[kind]++
		return
	}
	w := watched{t: t}
	w.refs[kind] = 1
	r.watches = append(r.watches, w)
}

// Unwatch undoes one Watch of t with the given kind. The transform stops
// being polled once no watch remains.
func (r *Registry) Unwatch(t Transform, kind WatchKind) {
	if kind < 0 || kind >= watchKindCount {
		return
	}
	r.unwatch(t, kind)
}

func (r *Registry) unwatch(t Transform, kind WatchKind) {
	for i := range r.watches {
		w := &r.watches[i]
		if w.t != t {
			continue
		}
		if w.refs[kind] > 0 {
			w.refs[kind]--
		}
		if w.total() == 0 {
			r.watches = append(r.watches[:i], r.watches[i+1:]...)
		}
		return
	}
}

func (r *Registry) find(t Transform) *watched {
	for i := range r.watches {
		if r.watches[i].t == t {
			return &r.watches[i]
		}
	}
	return nil
}

// Watching returns the number of distinct watched transforms.
func (r *Registry) Watching() int { return len(r.watches) }

// Poll checks every watched transform, clears their change flags, and
// reports what the changes require. An object transform change also sets
// the rebuild flag.
func (r *Registry) Poll() Change {
	var c Change
	for _, w := range r.watches {
		if !w.t.Changed() {
			continue
		}
		w.t.ClearChanged()
		c.Reset = true
		if w.refs[WatchObject] > 0 {
			c.Rebuild = true
		}
	}
	if c.Rebuild {
		r.dirty = true
	}
	return c
}

// Dirty reports whether the geometry buffers are stale.
func (r *Registry) Dirty() bool { return r.dirty }

// MarkDirty forces a rebuild on the next frame.
func (r *Registry) MarkDirty() { r.dirty = true }

// ClearDirty resets the rebuild flag after a rebuild.
func (r *Registry) ClearDirty() { r.dirty = false }
