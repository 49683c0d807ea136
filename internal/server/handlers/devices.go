package handlers

import (
	"net/http"

	"github.com/dwsmith1983/trashcan/internal/present"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

var (
	errRegister      = types.NewError(types.CodeRegister, types.MsgRegister, nil)
	errReport        = types.NewError(types.CodeReport, types.MsgReport, nil)
	errListDevices   = types.NewError(types.CodeListDevices, types.MsgListDevices, nil)
	errMissingDevice = types.NewError(types.CodeMissingDeviceID, types.MsgMissingDeviceID, nil)
	errDeviceDetails = types.NewError(types.CodeDeviceDetails, types.MsgDeviceDetails, nil)
	errDeviceHistory = types.NewError(types.CodeDeviceHistory, types.MsgDeviceHistory, nil)
)

// Register handles PUT /register?deviceId=&totalLevels=.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDParam(r)
	if !ok {
		h.writeFail(w, types.MsgDeviceIDRequired)
		return
	}
	totalLevels, ok := intParam(r, "totalLevels")
	if !ok {
		h.writeFail(w, types.MsgTotalLevelsInvalid)
		return
	}

	if err := h.provider.Register(r.Context(), deviceID, totalLevels); err != nil {
		h.writeError(w, r, errRegister, err)
		return
	}
	h.writeSuccess(w, map[string]any{
		"message":      "Registered device.",
		"device_id":    deviceID,
		"total_levels": totalLevels,
	})
}

// Report handles PUT /report?deviceId=&fillLevel=.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDParam(r)
	if !ok {
		h.writeFail(w, types.MsgDeviceIDRequired)
		return
	}
	fillLevel, ok := intParam(r, "fillLevel")
	if !ok {
		h.writeFail(w, types.MsgFillLevelInvalid)
		return
	}

	if err := h.provider.Report(r.Context(), deviceID, fillLevel); err != nil {
		h.writeError(w, r, errReport, err)
		return
	}
	h.writeSuccess(w, map[string]any{
		"message":    "Reported device status.",
		"device_id":  deviceID,
		"fill_level": fillLevel,
	})
}

// ListDevices handles GET /devices.
func (h *Handlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	recs, err := h.provider.ListDevices(r.Context())
	if err != nil {
		h.writeError(w, r, errListDevices, err)
		return
	}
	devices, err := present.Devices(recs)
	if err != nil {
		h.writeError(w, r, errListDevices, err)
		return
	}
	h.writeSuccess(w, map[string]any{"devices": devices})
}

// GetDevice handles GET /device?deviceId=. A missing deviceId is reported as
// a backend error, not a validation failure, to match the deployed contract.
func (h *Handlers) GetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDParam(r)
	if !ok {
		h.writeError(w, r, errMissingDevice, nil)
		return
	}

	details, history, err := h.provider.GetDevice(r.Context(), deviceID)
	if err != nil {
		h.writeError(w, r, errDeviceDetails, err)
		return
	}
	device, err := present.DeviceDetails(details)
	if err != nil {
		h.writeError(w, r, errDeviceDetails, err)
		return
	}
	entries, err := present.History(history)
	if err != nil {
		h.writeError(w, r, errDeviceHistory, err)
		return
	}
	h.writeSuccess(w, map[string]any{
		"device":  device,
		"history": entries,
	})
}
