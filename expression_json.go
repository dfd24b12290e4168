// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package mccode

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Errors
var (
	// ErrUnknownExprTag is returned when decoding an expression node with
	// an unrecognised type discriminator.
	ErrUnknownExprTag = errors.New("unknown expression node tag")
)

type valueJSON struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Kind       string          `json:"payload_kind"`
	DataType   string          `json:"data_type"`
	ObjectType string          `json:"object_type"`
	ShapeType  string          `json:"shape_type"`
}

type unaryJSON struct {
	Type  string          `json:"type"`
	Op    string          `json:"op"`
	Value json.RawMessage `json:"value"`
}

type binaryJSON struct {
	Type  string          `json:"type"`
	Op    string          `json:"op"`
	Left  json.RawMessage `json:"left"`
	Right json.RawMessage `json:"right"`
}

type trinaryJSON struct {
	Type  string          `json:"type"`
	Op    string          `json:"op"`
	Test  json.RawMessage `json:"test"`
	True  json.RawMessage `json:"true"`
	False json.RawMessage `json:"false"`
}

type callArgsJSON struct {
	Type string `json:"type"`
	Args []Expr `json:"args"`
}

func dataTypeFromString(s string) (DataType, error) {
	switch s {
	case "undefined":
		return DataUndefined, nil
	case "float":
		return DataFloat, nil
	case "int":
		return DataInt, nil
	case "str":
		return DataStr, nil
	}
	return DataUndefined, fmt.Errorf("unknown data type %q", s)
}

func objectTypeFromString(s string) (ObjectType, error) {
	switch s {
	case "value":
		return ObjectValue, nil
	case "initializer_list":
		return ObjectInitializerList, nil
	case "identifier":
		return ObjectIdentifier, nil
	case "function":
		return ObjectFunction, nil
	case "parameter":
		return ObjectParameter, nil
	}
	return ObjectValue, fmt.Errorf("unknown object type %q", s)
}

func shapeTypeFromString(s string) (ShapeType, error) {
	switch s {
	case "scalar":
		return ShapeScalar, nil
	case "vector":
		return ShapeVector, nil
	}
	return ShapeScalar, fmt.Errorf("unknown shape type %q", s)
}

func marshalNode(n Node) ([]byte, error) {
	switch t := n.(type) {
	case *Value:
		vj := valueJSON{
			Type:       "value",
			DataType:   t.data.String(),
			ObjectType: t.object.String(),
			ShapeType:  t.shape.String(),
		}
		switch p := t.payload.(type) {
		case nil:
			vj.Kind = "none"
		case int64:
			vj.Kind = "int"
			raw, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			vj.Payload = raw
		case float64:
			vj.Kind = "float"
			raw, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			vj.Payload = raw
		case string:
			vj.Kind = "str"
			raw, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			vj.Payload = raw
		case []Expr:
			vj.Kind = "list"
			raw, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			vj.Payload = raw
		default:
			return nil, fmt.Errorf("unencodable value payload %T", p)
		}
		return json.Marshal(vj)
	case *UnaryOp:
		v, err := marshalNode(t.V)
		if err != nil {
			return nil, err
		}
		return json.Marshal(unaryJSON{Type: "unary", Op: t.Op, Value: v})
	case *BinaryOp:
		l, err := marshalNode(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := marshalNode(t.Right)
		if err != nil {
			return nil, err
		}
		return json.Marshal(binaryJSON{Type: "binary", Op: t.Op, Left: l, Right: r})
	case *TrinaryOp:
		test, err := marshalNode(t.Test)
		if err != nil {
			return nil, err
		}
		tru, err := marshalNode(t.True)
		if err != nil {
			return nil, err
		}
		fls, err := marshalNode(t.False)
		if err != nil {
			return nil, err
		}
		return json.Marshal(trinaryJSON{Type: "trinary", Op: t.Op, Test: test, True: tru, False: fls})
	case *callArgs:
		return json.Marshal(callArgsJSON{Type: "call_args", Args: t.args})
	}
	return nil, fmt.Errorf("unencodable expression node %T", n)
}

func unmarshalNode(data []byte) (Node, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case "value":
		var vj valueJSON
		if err := json.Unmarshal(data, &vj); err != nil {
			return nil, err
		}
		dt, err := dataTypeFromString(vj.DataType)
		if err != nil {
			return nil, err
		}
		ot, err := objectTypeFromString(vj.ObjectType)
		if err != nil {
			return nil, err
		}
		st, err := shapeTypeFromString(vj.ShapeType)
		if err != nil {
			return nil, err
		}
		v := &Value{data: dt, object: ot, shape: st}
		switch vj.Kind {
		case "none", "":
		case "int":
			var p int64
			if err := json.Unmarshal(vj.Payload, &p); err != nil {
				return nil, err
			}
			v.payload = p
		case "float":
			var p float64
			if err := json.Unmarshal(vj.Payload, &p); err != nil {
				return nil, err
			}
			v.payload = p
		case "str":
			var p string
			if err := json.Unmarshal(vj.Payload, &p); err != nil {
				return nil, err
			}
			v.payload = p
		case "list":
			var p []Expr
			if err := json.Unmarshal(vj.Payload, &p); err != nil {
				return nil, err
			}
			v.payload = p
		default:
			return nil, fmt.Errorf("unknown value payload kind %q", vj.Kind)
		}
		return v, nil
	case "unary":
		var uj unaryJSON
		if err := json.Unmarshal(data, &uj); err != nil {
			return nil, err
		}
		child, err := unmarshalNode(uj.Value)
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: uj.Op, V: child}, nil
	case "binary":
		var bj binaryJSON
		if err := json.Unmarshal(data, &bj); err != nil {
			return nil, err
		}
		l, err := unmarshalNode(bj.Left)
		if err != nil {
			return nil, err
		}
		r, err := unmarshalNode(bj.Right)
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Op: bj.Op, Left: l, Right: r}, nil
	case "trinary":
		var tj trinaryJSON
		if err := json.Unmarshal(data, &tj); err != nil {
			return nil, err
		}
		test, err := unmarshalNode(tj.Test)
		if err != nil {
			return nil, err
		}
		tru, err := unmarshalNode(tj.True)
		if err != nil {
			return nil, err
		}
		fls, err := unmarshalNode(tj.False)
		if err != nil {
			return nil, err
		}
		return &TrinaryOp{Op: tj.Op, Test: test, True: tru, False: fls}, nil
	case "call_args":
		var cj callArgsJSON
		if err := json.Unmarshal(data, &cj); err != nil {
			return nil, err
		}
		return &callArgs{args: cj.Args}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownExprTag, tag.Type)
}

// MarshalJSON encodes the expression as a type-discriminated node tree.
// The zero Expr encodes as null.
func (e Expr) MarshalJSON() ([]byte, error) {
	if e.node == nil {
		return []byte("null"), nil
	}
	return marshalNode(e.node)
}

// UnmarshalJSON decodes a type-discriminated node tree.
func (e *Expr) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.node = nil
		return nil
	}
	n, err := unmarshalNode(data)
	if err != nil {
		return err
	}
	e.node = n
	return nil
}
