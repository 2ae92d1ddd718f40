package typename

import (
	"reflect"
	"strings"
)

// Of returns the fully qualified name of t, keeping pointer markers, e.g.
// "*github.com/aws/aws-sdk-go-v2/service/s3.Client". Unnamed types fall back to
// reflect's own representation.
func Of(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	var prefix strings.Builder
	for t.Kind() == reflect.Pointer {
		prefix.WriteByte('*')
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return prefix.String() + t.String()
	}
	return prefix.String() + t.PkgPath() + "." + t.Name()
}

// For returns the fully qualified name of T.
func For[T any]() string {
	return Of(reflect.TypeFor[T]())
}
