// Package rpc serves nitrate's XML-RPC API: a codec for methodCall and
// methodResponse documents, a method registry with per-method permissions,
// and the TestPlan, TestCase, TestRun and related namespaces.
package rpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrBadRequest reports a document that is not a valid XML-RPC call.
var ErrBadRequest = errors.New("malformed XML-RPC request")

// iso8601 is the dateTime.iso8601 layout written by the encoder.
const iso8601 = "20060102T15:04:05"

// dateTimeLayouts are the dateTime.iso8601 forms the decoder accepts.
var dateTimeLayouts = []string{
	iso8601,
	"2006-01-02T15:04:05",
	"20060102T15:04:05Z07:00",
	time.RFC3339,
}

// Fault is an XML-RPC fault. It doubles as the error handlers return to
// choose a specific fault code.
type Fault struct {
	Code   int
	String string
}

func (f *Fault) Error() string { return fmt.Sprintf("fault %d: %s", f.Code, f.String) }

// Faultf builds a Fault with a formatted message.
func Faultf(code int, format string, args ...any) *Fault {
	return &Fault{Code: code, String: fmt.Sprintf(format, args...)}
}

type methodCall struct {
	XMLName    xml.Name `xml:"methodCall"`
	MethodName string   `xml:"methodName"`
	Params     []param  `xml:"params>param"`
}

type methodResponse struct {
	XMLName xml.Name `xml:"methodResponse"`
	Params  []param  `xml:"params>param"`
	Fault   *value   `xml:"fault>value"`
}

type param struct {
	Value value `xml:"value"`
}

// value holds one <value>. At most one typed child is set; with none the
// character data is a string.
type value struct {
	Int      *string      `xml:"int"`
	I4       *string      `xml:"i4"`
	I8       *string      `xml:"i8"`
	Boolean  *string      `xml:"boolean"`
	String   *string      `xml:"string"`
	Double   *string      `xml:"double"`
	DateTime *string      `xml:"dateTime.iso8601"`
	Base64   *string      `xml:"base64"`
	Struct   *structValue `xml:"struct"`
	Array    *arrayValue  `xml:"array"`
	Nil      *struct{}    `xml:"nil"`
	Text     string       `xml:",chardata"`
}

type structValue struct {
	Members []member `xml:"member"`
}

type member struct {
	Name  string `xml:"name"`
	Value value  `xml:"value"`
}

type arrayValue struct {
	Values []value `xml:"data>value"`
}

func (v *value) decode() (any, error) {
	switch {
	case v.Int != nil:
		return parseInt(*v.Int)
	case v.I4 != nil:
		return parseInt(*v.I4)
	case v.I8 != nil:
		return parseInt(*v.I8)
	case v.Boolean != nil:
		switch strings.TrimSpace(*v.Boolean) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: boolean %q", ErrBadRequest, *v.Boolean)
	case v.String != nil:
		return *v.String, nil
	case v.Double != nil:
		f, err := strconv.ParseFloat(strings.TrimSpace(*v.Double), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: double %q", ErrBadRequest, *v.Double)
		}
		return f, nil
	case v.DateTime != nil:
		s := strings.TrimSpace(*v.DateTime)
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%w: dateTime %q", ErrBadRequest, s)
	case v.Base64 != nil:
		clean := strings.Join(strings.Fields(*v.Base64), "")
		b, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("%w: base64: %v", ErrBadRequest, err)
		}
		return b, nil
	case v.Struct != nil:
		out := make(map[string]any, len(v.Struct.Members))
		for i := range v.Struct.Members {
			m := &v.Struct.Members[i]
			val, err := m.Value.decode()
			if err != nil {
				return nil, err
			}
			out[m.Name] = val
		}
		return out, nil
	case v.Array != nil:
		out := make([]any, 0, len(v.Array.Values))
		for i := range v.Array.Values {
			val, err := v.Array.Values[i].decode()
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case v.Nil != nil:
		return nil, nil
	}
	return v.Text, nil
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: int %q", ErrBadRequest, s)
	}
	return n, nil
}

func decodeParams(ps []param) ([]any, error) {
	out := make([]any, 0, len(ps))
	for i := range ps {
		v, err := ps[i].Value.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeCall reads a methodCall document.
func DecodeCall(r io.Reader) (string, []any, error) {
	var call methodCall
	if err := xml.NewDecoder(r).Decode(&call); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	name := strings.TrimSpace(call.MethodName)
	if name == "" {
		return "", nil, fmt.Errorf("%w: missing methodName", ErrBadRequest)
	}
	params, err := decodeParams(call.Params)
	if err != nil {
		return "", nil, err
	}
	return name, params, nil
}

// DecodeResponse reads a methodResponse document. A fault response is
// returned as a *Fault error.
func DecodeResponse(r io.Reader) (any, error) {
	var resp methodResponse
	if err := xml.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if resp.Fault != nil {
		v, err := resp.Fault.decode()
		if err != nil {
			return nil, err
		}
		m, _ := v.(map[string]any)
		code, _ := m["faultCode"].(int)
		msg, _ := m["faultString"].(string)
		return nil, &Fault{Code: code, String: msg}
	}
	params, err := decodeParams(resp.Params)
	if err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, nil
	}
	return params[0], nil
}

// EncodeCall writes a methodCall document.
func EncodeCall(w io.Writer, method string, params ...any) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodCall><methodName>")
	xml.EscapeText(&buf, []byte(method))
	buf.WriteString("</methodName><params>")
	for _, p := range params {
		buf.WriteString("<param>")
		if err := encodeValue(&buf, p); err != nil {
			return err
		}
		buf.WriteString("</param>")
	}
	buf.WriteString("</params></methodCall>\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeResponse writes a methodResponse carrying result.
func EncodeResponse(w io.Writer, result any) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><params><param>")
	if err := encodeValue(&buf, result); err != nil {
		return err
	}
	buf.WriteString("</param></params></methodResponse>\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeFault writes a methodResponse carrying f.
func EncodeFault(w io.Writer, f *Fault) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><fault>")
	if err := encodeValue(&buf, map[string]any{"faultCode": f.Code, "faultString": f.String}); err != nil {
		return err
	}
	buf.WriteString("</fault></methodResponse>\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// encodeValue writes v as a <value> element. Structs are written with
// sorted member names.
func encodeValue(buf *bytes.Buffer, v any) error {
	buf.WriteString("<value>")
	if err := encodeInner(buf, v); err != nil {
		return err
	}
	buf.WriteString("</value>")
	return nil
}

func encodeInner(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("<nil/>")
	case bool:
		if x {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
	case int:
		fmt.Fprintf(buf, "<int>%d</int>", x)
	case int64:
		fmt.Fprintf(buf, "<int>%d</int>", x)
	case int32:
		fmt.Fprintf(buf, "<int>%d</int>", x)
	case float64:
		buf.WriteString("<double>" + strconv.FormatFloat(x, 'f', -1, 64) + "</double>")
	case string:
		buf.WriteString("<string>")
		xml.EscapeText(buf, []byte(x))
		buf.WriteString("</string>")
	case time.Time:
		buf.WriteString("<dateTime.iso8601>" + x.UTC().Format(iso8601) + "</dateTime.iso8601>")
	case []byte:
		buf.WriteString("<base64>" + base64.StdEncoding.EncodeToString(x) + "</base64>")
	case map[string]any:
		return encodeStruct(buf, x)
	case []any:
		buf.WriteString("<array><data>")
		for _, e := range x {
			if err := encodeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteString("</data></array>")
	default:
		return encodeReflect(buf, v)
	}
	return nil
}

func encodeStruct(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.WriteString("<struct>")
	for _, k := range keys {
		buf.WriteString("<member><name>")
		xml.EscapeText(buf, []byte(k))
		buf.WriteString("</name>")
		if err := encodeValue(buf, m[k]); err != nil {
			return err
		}
		buf.WriteString("</member>")
	}
	buf.WriteString("</struct>")
	return nil
}

// encodeReflect handles typed slices and string-keyed maps.
func encodeReflect(buf *bytes.Buffer, v any) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		buf.WriteString("<array><data>")
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(buf, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		buf.WriteString("</data></array>")
		return nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return encodeStruct(buf, m)
	case reflect.Pointer:
		if rv.IsNil() {
			buf.WriteString("<nil/>")
			return nil
		}
		return encodeInner(buf, rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		fmt.Fprintf(buf, "<int>%d</int>", rv.Convert(reflect.TypeOf(int64(0))).Int())
		return nil
	}
	return fmt.Errorf("cannot encode %T as XML-RPC", v)
}
