// Package object defines the attribute protocol lazyns namespaces speak.
//
// Any Go value can sit behind a name. Values that implement Getter,
// Setter, Deleter or Lister control their own attributes; plain
// map[string]any values and structs are handled by the helpers in this
// package so implementation units rarely need to implement anything.
package object

import (
	"context"
	"reflect"
	"strings"

	lnerrors "github.com/conneroisu/lazyns/pkg/errors"
)

// Getter exposes named attributes.
type Getter interface {
	GetAttr(ctx context.Context, name string) (any, error)
}

// Setter accepts attribute assignment.
type Setter interface {
	SetAttr(ctx context.Context, name string, value any) error
}

// Deleter accepts attribute deletion.
type Deleter interface {
	DelAttr(ctx context.Context, name string) error
}

// Lister enumerates attribute names.
type Lister interface {
	Dir() []string
}

// Named is implemented by values that know their fully-qualified name.
type Named interface {
	Name() string
}

// GetAttr reads name from obj.
//
// Lookup order: Getter, map[string]any, exported struct field, method.
// Pointers are followed for field lookup but methods are looked up on the
// original value first so pointer-receiver methods are found.
func GetAttr(ctx context.Context, obj any, name string) (any, error) {
	switch o := obj.(type) {
	case nil:
		return nil, lnerrors.NewAttributeError("<nil>", name)
	case Getter:
		return o.GetAttr(ctx, name)
	case map[string]any:
		v, ok := o[name]
		if !ok {
			return nil, lnerrors.NewAttributeError(typeName(obj), name)
		}
		return v, nil
	}

	rv := reflect.ValueOf(obj)
	if m := rv.MethodByName(name); m.IsValid() {
		return m.Interface(), nil
	}
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, lnerrors.NewAttributeError(typeName(obj), name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		if f, ok := rv.Type().FieldByName(name); ok && f.IsExported() {
			return rv.FieldByIndex(f.Index).Interface(), nil
		}
	}
	return nil, lnerrors.NewAttributeError(typeName(obj), name)
}

// SetAttr assigns name on obj. Structs are settable through a pointer.
func SetAttr(ctx context.Context, obj any, name string, value any) error {
	switch o := obj.(type) {
	case Setter:
		return o.SetAttr(ctx, name, value)
	case map[string]any:
		o[name] = value
		return nil
	}

	rv := reflect.ValueOf(obj)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		f := rv.Elem().FieldByName(name)
		if f.IsValid() && f.CanSet() {
			nv := reflect.ValueOf(value)
			if value == nil {
				f.Set(reflect.Zero(f.Type()))
				return nil
			}
			if nv.Type().AssignableTo(f.Type()) {
				f.Set(nv)
				return nil
			}
		}
	}
	return &lnerrors.Error{
		Type:    lnerrors.ErrorTypeAttribute,
		Code:    "ATTR_READONLY",
		Module:  typeName(obj),
		Name:    name,
		Message: "cannot set attribute " + name,
	}
}

// DelAttr removes name from obj.
func DelAttr(ctx context.Context, obj any, name string) error {
	switch o := obj.(type) {
	case Deleter:
		return o.DelAttr(ctx, name)
	case map[string]any:
		if _, ok := o[name]; !ok {
			return lnerrors.NewAttributeError(typeName(obj), name)
		}
		delete(o, name)
		return nil
	}
	return &lnerrors.Error{
		Type:    lnerrors.ErrorTypeAttribute,
		Code:    "ATTR_READONLY",
		Module:  typeName(obj),
		Name:    name,
		Message: "cannot delete attribute " + name,
	}
}

// Traverse walks a dotted attribute chain left to right. A failure at any
// segment is reported for the whole chain, never as a partial result.
func Traverse(ctx context.Context, obj any, path, chain string) (any, error) {
	if chain == "" {
		return obj, nil
	}
	cur := obj
	for _, seg := range strings.Split(chain, ".") {
		next, err := GetAttr(ctx, cur, seg)
		if err != nil {
			if !lnerrors.IsAttributeError(err) {
				return nil, err
			}
			return nil, lnerrors.NewTraverseError(path, chain, seg, err)
		}
		cur = next
	}
	return cur, nil
}

// Dir lists attribute names of obj when it can tell.
func Dir(obj any) []string {
	switch o := obj.(type) {
	case Lister:
		return o.Dir()
	case map[string]any:
		names := make([]string, 0, len(o))
		for k := range o {
			names = append(names, k)
		}
		return names
	}
	return nil
}

func typeName(obj any) string {
	if obj == nil {
		return "<nil>"
	}
	if n, ok := obj.(Named); ok {
		return n.Name()
	}
	return reflect.TypeOf(obj).String()
}
