package codec

import (
	"fmt"
	"math"

	"github.com/argus-sat/splat/endian"
	"github.com/argus-sat/splat/errs"
	"github.com/argus-sat/splat/format"
)

// appendScalar encodes value per typ and appends it to buf. A nil value
// encodes as zero of the declared type.
func appendScalar(buf []byte, e endian.EndianEngine, typ format.Scalar, value any) ([]byte, error) {
	switch typ {
	case format.U8:
		u, err := unsignedValue(value, math.MaxUint8)
		if err != nil {
			return nil, err
		}

		return append(buf, byte(u)), nil
	case format.U16:
		u, err := unsignedValue(value, math.MaxUint16)
		if err != nil {
			return nil, err
		}

		return e.AppendUint16(buf, uint16(u)), nil
	case format.U32:
		u, err := unsignedValue(value, math.MaxUint32)
		if err != nil {
			return nil, err
		}

		return e.AppendUint32(buf, uint32(u)), nil
	case format.U64:
		u, err := unsignedValue(value, math.MaxUint64)
		if err != nil {
			return nil, err
		}

		return e.AppendUint64(buf, u), nil
	case format.I16:
		i, err := signedValue(value, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}

		return e.AppendUint16(buf, uint16(int16(i))), nil
	case format.I32:
		i, err := signedValue(value, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}

		return e.AppendUint32(buf, uint32(int32(i))), nil
	case format.F32:
		f, err := floatValue(value)
		if err != nil {
			return nil, err
		}

		return e.AppendUint32(buf, math.Float32bits(float32(f))), nil
	case format.F64:
		f, err := floatValue(value)
		if err != nil {
			return nil, err
		}

		return e.AppendUint64(buf, math.Float64bits(f)), nil
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedScalarType, typ)
	}
}

// decodeScalar decodes one fixed-width scalar from the front of data and
// returns it with its concrete Go type.
func decodeScalar(e endian.EndianEngine, typ format.Scalar, data []byte) (any, error) {
	if len(data) < typ.Size() {
		return nil, fmt.Errorf("%w: need %d bytes for %s, have %d",
			errs.ErrTruncatedFrame, typ.Size(), typ, len(data))
	}

	switch typ {
	case format.U8:
		return data[0], nil
	case format.U16:
		return e.Uint16(data), nil
	case format.U32:
		return e.Uint32(data), nil
	case format.U64:
		return e.Uint64(data), nil
	case format.I16:
		return int16(e.Uint16(data)), nil
	case format.I32:
		return int32(e.Uint32(data)), nil
	case format.F32:
		return math.Float32frombits(e.Uint32(data)), nil
	case format.F64:
		return math.Float64frombits(e.Uint64(data)), nil
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedScalarType, typ)
	}
}

func unsignedValue(value any, maxVal uint64) (uint64, error) {
	if value == nil {
		return 0, nil
	}

	var u uint64
	switch v := value.(type) {
	case uint8:
		u = uint64(v)
	case uint16:
		u = uint64(v)
	case uint32:
		u = uint64(v)
	case uint64:
		u = v
	case uint:
		u = uint64(v)
	case int8, int16, int32, int64, int:
		i := reflectInt(v)
		if i < 0 {
			return 0, fmt.Errorf("%w: negative value %d for unsigned field", errs.ErrFieldOverflow, i)
		}
		u = uint64(i)
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", errs.ErrInvalidValue, value)
	}

	if u > maxVal {
		return 0, fmt.Errorf("%w: %d exceeds field maximum %d", errs.ErrFieldOverflow, u, maxVal)
	}

	return u, nil
}

func signedValue(value any, minVal, maxVal int64) (int64, error) {
	if value == nil {
		return 0, nil
	}

	var i int64
	switch v := value.(type) {
	case int8, int16, int32, int64, int:
		i = reflectInt(v)
	case uint8:
		i = int64(v)
	case uint16:
		i = int64(v)
	case uint32:
		i = int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d exceeds field maximum %d", errs.ErrFieldOverflow, v, maxVal)
		}
		i = int64(v)
	case uint:
		i = int64(v)
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", errs.ErrInvalidValue, value)
	}

	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("%w: %d outside [%d, %d]", errs.ErrFieldOverflow, i, minVal, maxVal)
	}

	return i, nil
}

func floatValue(value any) (float64, error) {
	if value == nil {
		return 0, nil
	}

	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int8, int16, int32, int64, int:
		return float64(reflectInt(v)), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T is not numeric", errs.ErrInvalidValue, value)
	}
}

func reflectInt(v any) int64 {
	switch i := v.(type) {
	case int8:
		return int64(i)
	case int16:
		return int64(i)
	case int32:
		return int64(i)
	case int64:
		return i
	case int:
		return int64(i)
	}

	return 0
}
