package firestore

import (
	"fmt"
	"strconv"
)

// Firestore REST wire types. Only the subset this adapter speaks is modeled;
// the generated client is deliberately not used so the commit/runQuery
// payloads stay under our control.

type wireValue struct {
	NullValue      *string    `json:"nullValue,omitempty"`
	BooleanValue   *bool      `json:"booleanValue,omitempty"`
	IntegerValue   *string    `json:"integerValue,omitempty"`
	DoubleValue    *float64   `json:"doubleValue,omitempty"`
	StringValue    *string    `json:"stringValue,omitempty"`
	TimestampValue *string    `json:"timestampValue,omitempty"`
	ArrayValue     *wireArray `json:"arrayValue,omitempty"`
	MapValue       *wireMap   `json:"mapValue,omitempty"`
}

type wireArray struct {
	Values []wireValue `json:"values,omitempty"`
}

type wireMap struct {
	Fields map[string]wireValue `json:"fields,omitempty"`
}

type wireDocument struct {
	Name       string               `json:"name,omitempty"`
	Fields     map[string]wireValue `json:"fields,omitempty"`
	CreateTime string               `json:"createTime,omitempty"`
	UpdateTime string               `json:"updateTime,omitempty"`
}

type structuredQuery struct {
	From    []collectionSelector `json:"from"`
	Where   *queryFilter         `json:"where,omitempty"`
	OrderBy []queryOrder         `json:"orderBy,omitempty"`
	Limit   *int                 `json:"limit,omitempty"`
}

type collectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type queryFilter struct {
	CompositeFilter *compositeFilter `json:"compositeFilter,omitempty"`
	FieldFilter     *fieldFilter     `json:"fieldFilter,omitempty"`
}

type compositeFilter struct {
	Op      string        `json:"op"`
	Filters []queryFilter `json:"filters"`
}

type fieldFilter struct {
	Field fieldReference `json:"field"`
	Op    string         `json:"op"`
	Value wireValue      `json:"value"`
}

type fieldReference struct {
	FieldPath string `json:"fieldPath"`
}

type queryOrder struct {
	Field     fieldReference `json:"field"`
	Direction string         `json:"direction"`
}

type runQueryRequest struct {
	StructuredQuery structuredQuery `json:"structuredQuery"`
}

type runQueryResponse struct {
	Document *wireDocument `json:"document,omitempty"`
	ReadTime string        `json:"readTime,omitempty"`
}

type commitRequest struct {
	Writes []wireWrite `json:"writes"`
}

type wireWrite struct {
	Update          *wireDocument      `json:"update,omitempty"`
	Delete          string             `json:"delete,omitempty"`
	UpdateMask      *documentMask      `json:"updateMask,omitempty"`
	CurrentDocument *precondition      `json:"currentDocument,omitempty"`
	Transform       *documentTransform `json:"transform,omitempty"`
}

type documentMask struct {
	FieldPaths []string `json:"fieldPaths"`
}

type precondition struct {
	Exists *bool `json:"exists,omitempty"`
}

type documentTransform struct {
	Document        string           `json:"document"`
	FieldTransforms []fieldTransform `json:"fieldTransforms"`
}

type fieldTransform struct {
	FieldPath string     `json:"fieldPath"`
	Increment *wireValue `json:"increment,omitempty"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func toWireValue(v any) wireValue {
	switch t := v.(type) {
	case nil:
		null := "NULL_VALUE"
		return wireValue{NullValue: &null}
	case bool:
		return wireValue{BooleanValue: &t}
	case string:
		return wireValue{StringValue: &t}
	case int:
		s := strconv.FormatInt(int64(t), 10)
		return wireValue{IntegerValue: &s}
	case int64:
		s := strconv.FormatInt(t, 10)
		return wireValue{IntegerValue: &s}
	case float64:
		return wireValue{DoubleValue: &t}
	case []any:
		vals := make([]wireValue, len(t))
		for i, e := range t {
			vals[i] = toWireValue(e)
		}
		return wireValue{ArrayValue: &wireArray{Values: vals}}
	case map[string]any:
		return wireValue{MapValue: &wireMap{Fields: toWireFields(t)}}
	default:
		s := fmt.Sprint(t)
		return wireValue{StringValue: &s}
	}
}

func toWireFields(fields map[string]any) map[string]wireValue {
	out := make(map[string]wireValue, len(fields))
	for k, v := range fields {
		out[k] = toWireValue(v)
	}
	return out
}

func fromWireValue(v wireValue) any {
	switch {
	case v.BooleanValue != nil:
		return *v.BooleanValue
	case v.IntegerValue != nil:
		n, err := strconv.ParseInt(*v.IntegerValue, 10, 64)
		if err != nil {
			return *v.IntegerValue
		}
		return n
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.StringValue != nil:
		return *v.StringValue
	case v.TimestampValue != nil:
		return *v.TimestampValue
	case v.ArrayValue != nil:
		out := make([]any, len(v.ArrayValue.Values))
		for i, e := range v.ArrayValue.Values {
			out[i] = fromWireValue(e)
		}
		return out
	case v.MapValue != nil:
		return fromWireFields(v.MapValue.Fields)
	default:
		return nil
	}
}

func fromWireFields(fields map[string]wireValue) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = fromWireValue(v)
	}
	return out
}
