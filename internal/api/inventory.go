package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/mqtt2broadlink/internal/broadlink"
	"github.com/nerrad567/mqtt2broadlink/internal/registry"
)

// deviceView is the JSON form of a configured device.
type deviceView struct {
	Name     string `json:"name"`
	Identity string `json:"identity"`
	Type     string `json:"type,omitempty"`
	Model    string `json:"model,omitempty"`
	Host     string `json:"host,omitempty"`
	MAC      string `json:"mac,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newDeviceView(name, text string) deviceView {
	v := deviceView{Name: name, Identity: text}
	id, err := registry.ParseIdentity(name, text)
	if err != nil {
		v.Error = err.Error()
		return v
	}
	v.Type = fmt.Sprintf("0x%04x", id.Type)
	v.Model = broadlink.Model(id.Type)
	v.Host = id.Host
	v.MAC = id.MAC.String()
	return v
}

// handleListDevices returns every configured device in file order.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Inventory == nil {
		writeNotFound(w, "inventory not available")
		return
	}

	names := s.deps.Inventory.DeviceNames()
	devices := make([]deviceView, 0, len(names))
	for _, name := range names {
		text, ok := s.deps.Inventory.Device(name)
		if !ok {
			continue // removed between the two reads
		}
		devices = append(devices, newDeviceView(name, text))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device by name.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if s.deps.Inventory == nil {
		writeNotFound(w, "inventory not available")
		return
	}

	name := chi.URLParam(r, "name")
	text, ok := s.deps.Inventory.Device(name)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(name, text))
}

// handleListCommands returns the names of stored commands. Codes are not
// exposed; they are only useful to the bridge.
func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Inventory == nil {
		writeNotFound(w, "inventory not available")
		return
	}

	names := s.deps.Inventory.CommandNames()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": names,
		"count":    len(names),
	})
}
