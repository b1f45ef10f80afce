package codec

import (
	"fmt"
	"go/token"
	"reflect"
	"sync"

	"github.com/arloliu/canon/diag"
	"github.com/arloliu/canon/errs"
	"github.com/arloliu/canon/internal/options"
	"github.com/arloliu/canon/plan"
	"github.com/arloliu/canon/schema"
	"github.com/arloliu/canon/typedef"
	"github.com/arloliu/canon/wire"
)

type (
	encoderFunc func(w *wire.Writer, v reflect.Value) error
	// decoderFunc fills v, which is always settable.
	decoderFunc func(r *wire.Reader, v reflect.Value) error
)

// typeCodec is the compiled codec of one Go type. While a recursive type is
// being compiled, its typeCodec is reachable with nil enc and dec, so callers
// must read them at call time rather than capture them.
type typeCodec struct {
	typ reflect.Type
	ref typedef.TypeRef
	enc encoderFunc
	dec decoderFunc
	// minSize is the shortest encoding of any value, in bytes.
	minSize int
}

// Registry compiles and caches codecs. It is safe for concurrent use; codecs
// are compiled once, under the registry lock, and read without it afterwards.
type Registry struct {
	mu        sync.RWMutex
	namespace string
	sink      diag.Sink
	codecs    map[reflect.Type]*typeCodec
	plans     map[reflect.Type]*plan.Plan
	defs      []*typedef.Definition
	names     map[string]reflect.Type
	sums      map[reflect.Type]*sumSpec
	withs     map[string]*namedCodec
	schemas   map[string]schema.Override
	// generation counts changes that can alter a schema: new definitions
	// and schema overrides.
	generation uint64
}

// Option configures a Registry.
type Option = options.Option[*Registry]

// WithNamespace sets the prefix of the declarations the registry exposes
// through Universe. It must be a Go identifier, or empty for none.
func WithNamespace(namespace string) Option {
	return options.New(func(r *Registry) error {
		if namespace != "" && !token.IsIdentifier(namespace) {
			return fmt.Errorf("%w: namespace %q is not an identifier", errs.ErrInvalidDefinition, namespace)
		}
		r.namespace = namespace

		return nil
	})
}

// WithDiagnostics routes generation-time reports to sink.
func WithDiagnostics(sink diag.Sink) Option {
	return options.NoError(func(r *Registry) {
		if sink == nil {
			sink = diag.Discard()
		}
		r.sink = sink
	})
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		sink:    diag.Discard(),
		codecs:  make(map[reflect.Type]*typeCodec),
		plans:   make(map[reflect.Type]*plan.Plan),
		names:   make(map[string]reflect.Type),
		sums:    make(map[reflect.Type]*sumSpec),
		withs:   make(map[string]*namedCodec),
		schemas: make(map[string]schema.Override),
	}
	if err := options.Apply(r, opts...); err != nil {
		return nil, err
	}

	return r, nil
}

// Namespace returns the configured namespace.
func (r *Registry) Namespace() string {
	return r.namespace
}

func (r *Registry) codecFor(t reflect.Type) (*typeCodec, error) {
	r.mu.RLock()
	tc, ok := r.codecs[t]
	r.mu.RUnlock()
	if ok {
		return tc, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tc, ok := r.codecs[t]; ok {
		return tc, nil
	}

	b := newBuilder(r)
	tc, err := b.build(t)
	if err == nil {
		b.commit()
	}
	for _, d := range b.warnings {
		r.sink.Report(d)
	}
	if err != nil {
		r.sink.Report(diag.FromError(err))
		return nil, err
	}

	return tc, nil
}

// Compile compiles the codec of t, reporting any configuration error without
// encoding anything.
func (r *Registry) Compile(t reflect.Type) error {
	_, err := r.codecFor(t)
	return err
}

// Ref returns the TypeRef t is bound to.
func (r *Registry) Ref(t reflect.Type) (typedef.TypeRef, error) {
	tc, err := r.codecFor(t)
	if err != nil {
		return typedef.TypeRef{}, err
	}

	return tc.ref, nil
}

// Plan returns the plan of struct or sum type t.
func (r *Registry) Plan(t reflect.Type) (*plan.Plan, error) {
	if _, err := r.codecFor(t); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plans[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no plan", errs.ErrUnsupportedType, t)
	}

	return p, nil
}

// Generation returns a counter that changes whenever a schema built by the
// registry could change. Read it before building to cache the result.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.generation
}

// Universe returns the definitions of every type compiled so far.
func (r *Registry) Universe() (*typedef.Universe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u := typedef.NewUniverse(r.namespace)
	for _, def := range r.defs {
		if err := u.Add(def); err != nil {
			return nil, err
		}
	}

	return u, nil
}

// EncodeValue appends the encoding of v to w.
func (r *Registry) EncodeValue(w *wire.Writer, v reflect.Value) error {
	if !v.IsValid() {
		return fmt.Errorf("%w: cannot encode untyped nil", errs.ErrNilValue)
	}

	tc, err := r.codecFor(v.Type())
	if err != nil {
		return err
	}

	return tc.enc(w, v)
}

// Encode appends the encoding of v, using its dynamic type, to w.
func (r *Registry) Encode(w *wire.Writer, v any) error {
	return r.EncodeValue(w, reflect.ValueOf(v))
}

// DecodeValue decodes one value of v's type from rd into v, which must be
// settable. v is only modified if decoding succeeds.
func (r *Registry) DecodeValue(rd *wire.Reader, v reflect.Value) error {
	if !v.IsValid() || !v.CanSet() {
		return fmt.Errorf("%w: decode destination must be settable", errs.ErrNilValue)
	}

	tc, err := r.codecFor(v.Type())
	if err != nil {
		return err
	}

	tmp := reflect.New(v.Type()).Elem()
	tmp.Set(v)
	if err := tc.dec(rd, tmp); err != nil {
		return err
	}
	v.Set(tmp)

	return nil
}

// Decode decodes one value from rd into the value dst points to.
func (r *Registry) Decode(rd *wire.Reader, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode destination must be a non-nil pointer, got %T", errs.ErrNilValue, dst)
	}

	return r.DecodeValue(rd, rv.Elem())
}

// builder compiles codecs for one request. Codecs and definitions it creates
// are staged and only published by commit, so a failed compilation leaves
// the registry unchanged.
type builder struct {
	reg      *Registry
	staged   map[reflect.Type]*typeCodec
	plans    map[reflect.Type]*plan.Plan
	defs     []*typedef.Definition
	names    map[string]reflect.Type
	warnings []diag.Diagnostic
}

func newBuilder(r *Registry) *builder {
	return &builder{
		reg:    r,
		staged: make(map[reflect.Type]*typeCodec),
		plans:  make(map[reflect.Type]*plan.Plan),
		names:  make(map[string]reflect.Type),
	}
}

func (b *builder) warn(typeName, item, message string) {
	b.warnings = append(b.warnings, diag.Warning(typeName, item, message))
}

// claim reserves a declaration name for t.
func (b *builder) claim(name string, t reflect.Type) error {
	owner, ok := b.reg.names[name]
	if !ok {
		owner, ok = b.names[name]
	}
	if ok && owner != t {
		return errs.Definition(name, "", fmt.Errorf("%w: name used by both %s and %s",
			errs.ErrInvalidDefinition, owner, t))
	}
	b.names[name] = t

	return nil
}

func (b *builder) addDefinition(t reflect.Type, def *typedef.Definition, p *plan.Plan) {
	b.defs = append(b.defs, def)
	b.plans[t] = p
}

func (b *builder) commit() {
	r := b.reg
	for t, tc := range b.staged {
		r.codecs[t] = tc
	}
	for t, p := range b.plans {
		r.plans[t] = p
	}
	for name, t := range b.names {
		r.names[name] = t
	}
	r.defs = append(r.defs, b.defs...)
	if len(b.defs) > 0 {
		r.generation++
	}
}

// build returns the codec of t, compiling it if needed.
func (b *builder) build(t reflect.Type) (*typeCodec, error) {
	if tc, ok := b.reg.codecs[t]; ok {
		return tc, nil
	}
	if tc, ok := b.staged[t]; ok {
		if tc.ref.Kind == 0 {
			return nil, fmt.Errorf("%w: %s refers to itself without a named struct or sum in between",
				errs.ErrUnsupportedType, t)
		}

		return tc, nil
	}

	tc := &typeCodec{typ: t}
	b.staged[t] = tc
	if err := b.compile(tc); err != nil {
		return nil, err
	}

	return tc, nil
}

func (b *builder) refOf(t reflect.Type) (typedef.TypeRef, error) {
	tc, err := b.build(t)
	if err != nil {
		return typedef.TypeRef{}, err
	}

	return tc.ref, nil
}

func (b *builder) compile(tc *typeCodec) error {
	t := tc.typ

	switch t {
	case uint128Type:
		compileUint128(tc)
		return nil
	case int128Type:
		compileInt128(tc)
		return nil
	}

	self, err := selfCoding(t)
	if err != nil {
		return err
	}
	if self {
		return b.compileSelf(tc)
	}

	if p, ok := primitiveOf(t.Kind()); ok {
		compilePrimitive(tc, p)
		return nil
	}

	switch t.Kind() { //nolint:exhaustive
	case reflect.Slice:
		return b.compileSlice(tc)
	case reflect.Array:
		return b.compileArray(tc)
	case reflect.Pointer:
		return b.compileOption(tc)
	case reflect.Map:
		return b.compileMap(tc)
	case reflect.Struct:
		return b.compileStruct(tc)
	case reflect.Interface:
		if spec, ok := b.reg.sums[t]; ok {
			return b.compileSum(tc, spec)
		}

		return fmt.Errorf("%w: interface %s is not a registered sum type", errs.ErrUnsupportedType, t)
	default:
		return fmt.Errorf("%w: %s", errs.ErrUnsupportedType, t)
	}
}
