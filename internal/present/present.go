// Package present shapes decoded storage rows into client-facing records:
// key attributes are removed and replaced by the device id they encode.
package present

import (
	"errors"
	"fmt"

	"github.com/dwsmith1983/trashcan/internal/keys"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

// ErrMalformedKey is returned when a stored key does not encode a device id.
var ErrMalformedKey = errors.New("malformed device key")

// CurrentStatus shapes a current status row. The device id comes from sk.
func CurrentStatus(rec types.Record) (types.Record, error) {
	return shape(rec, keys.AttrSK)
}

// DeviceDetails shapes a device details row. The device id comes from pk.
func DeviceDetails(rec types.Record) (types.Record, error) {
	return shape(rec, keys.AttrPK)
}

// HistoryEntry shapes a history row. The device id comes from pk.
func HistoryEntry(rec types.Record) (types.Record, error) {
	return shape(rec, keys.AttrPK)
}

// Devices shapes a list of current status rows.
func Devices(recs []types.Record) ([]types.Record, error) {
	return shapeAll(recs, CurrentStatus)
}

// History shapes a list of history rows, preserving order.
func History(recs []types.Record) ([]types.Record, error) {
	return shapeAll(recs, HistoryEntry)
}

func shape(rec types.Record, idAttr string) (types.Record, error) {
	raw, _ := rec.String(idAttr)
	id, ok := keys.ExtractDeviceID(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s=%q", ErrMalformedKey, idAttr, raw)
	}
	out := rec.Clone()
	delete(out, keys.AttrPK)
	delete(out, keys.AttrSK)
	out["id"] = id
	return out, nil
}

func shapeAll(recs []types.Record, fn func(types.Record) (types.Record, error)) ([]types.Record, error) {
	out := make([]types.Record, 0, len(recs))
	for _, rec := range recs {
		s, err := fn(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
