package storage

import (
	"encoding/json"
	"errors"
	"reflect"
)

// decodeInto unmarshals b into the value pointed at by into, all-or-nothing.
//
// encoding/json can partially populate a destination before hitting a type
// error, which would corrupt the caller's default. Decoding into a fresh
// value of the same type and copying only on success keeps the contract:
// on any failure the default is left exactly as supplied.
func decodeInto(b []byte, into any) error {
	rv := reflect.ValueOf(into)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("storage: destination must be a non-nil pointer")
	}
	fresh := reflect.New(rv.Type().Elem())
	if err := json.Unmarshal(b, fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}
