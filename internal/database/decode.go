package database

import (
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// FieldDecoder is implemented by field types that decode themselves from a
// raw stored value, such as tagged unions.
type FieldDecoder interface {
	DecodeField(raw any) error
}

var fieldDecoderType = reflect.TypeOf((*FieldDecoder)(nil)).Elem()

func fieldDecoderHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if data == nil || !reflect.PointerTo(to).Implements(fieldDecoderType) {
		return data, nil
	}
	ptr := reflect.New(to)
	if err := ptr.Interface().(FieldDecoder).DecodeField(data); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// Decode maps raw document fields onto out. Struct fields are matched by
// their `store` tag; a `store:",remain"` map collects everything else.
func Decode(data Fields, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			fieldDecoderHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
		TagName: "store",
		Result:  out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(data))
}
