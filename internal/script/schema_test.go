package script

import (
	"testing"
)

func TestParseSchemaBasicTypes(t *testing.T) {
	source := `
-- @property {number} speed = 5 [0, 100]
-- @property {string} target = "Player"
-- @property {boolean} active = true
-- @property {vector3} offset = (1, 2, 3)
-- @property {color} tint = #ff0000

function update(dt) end
`
	schema := ParseSchema(source)
	if len(schema) != 5 {
		t.Fatalf("Expected 5 properties, got %d", len(schema))
	}

	speed := schema[0]
	if speed.Name != "speed" || speed.Type != TypeNumber {
		t.Errorf("Expected number property 'speed', got %+v", speed)
	}
	if speed.Default != float64(5) {
		t.Errorf("Expected default 5, got %v", speed.Default)
	}
	if !speed.HasMin || speed.Min != 0 || !speed.HasMax || speed.Max != 100 {
		t.Errorf("Expected range [0, 100], got %+v", speed)
	}

	if schema[1].Default != "Player" {
		t.Errorf("Expected string default 'Player', got %v", schema[1].Default)
	}

	if schema[2].Default != true {
		t.Errorf("Expected boolean default true, got %v", schema[2].Default)
	}

	if schema[3].Default != ([3]float64{1, 2, 3}) {
		t.Errorf("Expected vector default (1,2,3), got %v", schema[3].Default)
	}

	tint, ok := schema[4].Default.([4]float64)
	if !ok || tint[0] != 1 || tint[1] != 0 || tint[2] != 0 || tint[3] != 1 {
		t.Errorf("Expected color default red, got %v", schema[4].Default)
	}
}

func TestParseSchemaUnknownTypeFallsBack(t *testing.T) {
	schema := ParseSchema(`-- @property {widget} gadget = whatever`)
	if len(schema) != 1 {
		t.Fatalf("Expected 1 property, got %d", len(schema))
	}
	if schema[0].Type != TypeObject {
		t.Errorf("Unknown type should fall back to object, got %v", schema[0].Type)
	}
	if schema[0].Default != nil {
		t.Errorf("Object default should be nil, got %v", schema[0].Default)
	}
}

func TestParseSchemaSkipsMalformed(t *testing.T) {
	source := `
-- @property {number} broken = notanumber
-- @property {number}
-- @property speed = 5
-- @property {number} ok = 1
`
	schema := ParseSchema(source)
	if len(schema) != 1 {
		t.Fatalf("Expected only the well-formed property, got %d", len(schema))
	}
	if schema[0].Name != "ok" {
		t.Errorf("Expected property 'ok', got '%s'", schema[0].Name)
	}
}

func TestParseSchemaDuplicateKeepsFirst(t *testing.T) {
	source := `
-- @property {number} speed = 1
-- @property {number} speed = 2
`
	schema := ParseSchema(source)
	if len(schema) != 1 {
		t.Fatalf("Expected 1 property, got %d", len(schema))
	}
	if schema[0].Default != float64(1) {
		t.Errorf("Expected the first declaration to win, got %v", schema[0].Default)
	}
}

func TestParseSchemaDefaultsWhenOmitted(t *testing.T) {
	source := `
-- @property {number} n
-- @property {string} s
-- @property {boolean} b
-- @property {vector3} v
`
	schema := ParseSchema(source)
	if len(schema) != 4 {
		t.Fatalf("Expected 4 properties, got %d", len(schema))
	}
	if schema[0].Default != float64(0) || schema[1].Default != "" || schema[2].Default != false {
		t.Errorf("Unexpected zero defaults: %v, %v, %v", schema[0].Default, schema[1].Default, schema[2].Default)
	}
	if schema[3].Default != ([3]float64{}) {
		t.Errorf("Expected zero vector default, got %v", schema[3].Default)
	}
}

func TestParseSchemaNamedConstraints(t *testing.T) {
	schema := ParseSchema(`-- @property {number} n = 5 [min=1, max=9]`)
	if len(schema) != 1 {
		t.Fatalf("Expected 1 property, got %d", len(schema))
	}
	p := schema[0]
	if !p.HasMin || p.Min != 1 || !p.HasMax || p.Max != 9 {
		t.Errorf("Expected min=1 max=9, got %+v", p)
	}
}

func TestCoerceClampsNumbers(t *testing.T) {
	p := Property{Name: "n", Type: TypeNumber, Default: float64(5), Min: 0, Max: 10, HasMin: true, HasMax: true}

	if v := p.Coerce(float64(50)); v != float64(10) {
		t.Errorf("Expected clamp to 10, got %v", v)
	}
	if v := p.Coerce(-3); v != float64(0) {
		t.Errorf("Expected clamp to 0, got %v", v)
	}
	if v := p.Coerce("nope"); v != float64(5) {
		t.Errorf("Expected fallback to default, got %v", v)
	}
}

func TestCoerceVectorFromJSON(t *testing.T) {
	p := Property{Name: "v", Type: TypeVector3, Default: [3]float64{}}

	// JSON round trips arrays as []interface{}.
	v := p.Coerce([]interface{}{1.0, 2.0, 3.0})
	if v != ([3]float64{1, 2, 3}) {
		t.Errorf("Expected (1,2,3), got %v", v)
	}
}
