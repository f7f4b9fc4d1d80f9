package mongostore

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Documents written by the sync pipeline and the dashboard are loosely typed:
// ids, ports and counters show up as strings, ints or doubles depending on the
// writer. These helpers read them leniently.

func rawString(v bson.RawValue) string {
	if s, ok := v.StringValueOK(); ok {
		return strings.TrimSpace(s)
	}
	if n, ok := v.Int32OK(); ok {
		return strconv.FormatInt(int64(n), 10)
	}
	if n, ok := v.Int64OK(); ok {
		return strconv.FormatInt(n, 10)
	}
	if f, ok := v.DoubleOK(); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex()
	}
	return ""
}

// rawInt returns 0 for missing or unparsable values.
func rawInt(v bson.RawValue) int {
	if n, ok := v.Int32OK(); ok {
		return int(n)
	}
	if n, ok := v.Int64OK(); ok {
		return int(n)
	}
	if f, ok := v.DoubleOK(); ok {
		return int(f)
	}
	if s, ok := v.StringValueOK(); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err == nil {
			return n
		}
	}
	return 0
}

// rawIntOr is rawInt for settings with a default: def applies only when the
// field is missing or null, so an explicit 0 is kept.
func rawIntOr(v bson.RawValue, def int) int {
	if v.Type == 0 || v.Type == bson.TypeNull {
		return def
	}
	return rawInt(v)
}

// rawMinor converts a decimal currency amount to integer cents.
func rawMinor(v bson.RawValue) int64 {
	if n, ok := v.Int32OK(); ok {
		return int64(n) * 100
	}
	if n, ok := v.Int64OK(); ok {
		return n * 100
	}
	var f float64
	if d, ok := v.DoubleOK(); ok {
		f = d
	} else if s, ok := v.StringValueOK(); ok {
		p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		f = p
	}
	return int64(math.Round(f * 100))
}

// timeRange builds a half-open [from, to) filter; zero bounds are open.
func timeRange(from, to time.Time) bson.M {
	r := bson.M{}
	if !from.IsZero() {
		r["$gte"] = from
	}
	if !to.IsZero() {
		r["$lt"] = to
	}
	return r
}
