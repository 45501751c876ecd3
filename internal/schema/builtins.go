package schema

import (
	"fmt"

	"github.com/stepherg/rbus-elements/internal/registry"
	"github.com/stepherg/rbus-elements/internal/value"
)

// appendBuiltins inserts the fixed built-in element set (platform-probe
// properties with bound get handlers, the InterfaceTable, the system
// status event, and the Reboot/GetSystemInfo/SendData methods) in the
// stable order below. User schema entries always precede these.
func (l *Loader) appendBuiltins(reg *registry.Registry) error {
	reg.Insert(registry.Element{
		Name:       "Device.DeviceInfo.SerialNumber",
		Kind:       registry.KindProperty,
		Writable:   false,
		Default:    value.String("unknown"),
		GetHandler: func() (value.Value, error) { return probeString(l.Platform.SerialNumber) },
	})
	reg.Insert(registry.Element{
		Name:       "Device.DeviceInfo.X_RDKCENTRAL-COM_SystemTime",
		Kind:       registry.KindProperty,
		Writable:   false,
		Default:    value.String("unknown"),
		GetHandler: func() (value.Value, error) { return probeString(l.Platform.SystemTimeISO) },
	})
	reg.Insert(registry.Element{
		Name:     "Device.DeviceInfo.UpTime",
		Kind:     registry.KindProperty,
		Writable: false,
		Default:  value.UInt32(0),
		GetHandler: func() (value.Value, error) {
			up, err := l.Platform.UptimeSeconds()
			if err != nil {
				return value.Value{}, err
			}
			return value.UInt32(up), nil
		},
	})
	reg.Insert(registry.Element{
		Name:       "Device.DeviceInfo.X_COMCAST-COM_CM_MAC",
		Kind:       registry.KindProperty,
		Writable:   false,
		Default:    value.String("unknown"),
		GetHandler: func() (value.Value, error) { return probeString(l.Platform.MACAddress) },
	})
	reg.Insert(registry.Element{
		Name:     "Device.DeviceInfo.MemoryStatus.Total",
		Kind:     registry.KindProperty,
		Writable: false,
		Default:  value.UInt32(0),
		GetHandler: func() (value.Value, error) {
			total, _, _, err := l.Platform.MemoryKiB()
			return value.UInt32(total), err
		},
	})
	reg.Insert(registry.Element{
		Name:     "Device.DeviceInfo.MemoryStatus.Used",
		Kind:     registry.KindProperty,
		Writable: false,
		Default:  value.UInt32(0),
		GetHandler: func() (value.Value, error) {
			_, used, _, err := l.Platform.MemoryKiB()
			return value.UInt32(used), err
		},
	})
	reg.Insert(registry.Element{
		Name:     "Device.DeviceInfo.MemoryStatus.Free",
		Kind:     registry.KindProperty,
		Writable: false,
		Default:  value.UInt32(0),
		GetHandler: func() (value.Value, error) {
			_, _, free, err := l.Platform.MemoryKiB()
			return value.UInt32(free), err
		},
	})
	reg.Insert(registry.Element{
		Name:       "Device.Time.CurrentLocalTime",
		Kind:       registry.KindProperty,
		Writable:   false,
		Default:    value.DateTime("unknown"),
		GetHandler: func() (value.Value, error) { return probeDateTime(l.Platform.LocalTimeISO) },
	})
	reg.EnsureTable("Device.InterfaceTable.{i}")
	reg.Insert(registry.Element{
		Name: "Device.SystemStatusChanged!",
		Kind: registry.KindEvent,
	})
	reg.Insert(registry.Element{
		Name:          "Device.Reboot()",
		Kind:          registry.KindMethod,
		MethodHandler: rebootHandler,
	})
	reg.Insert(registry.Element{
		Name:          "Device.GetSystemInfo()",
		Kind:          registry.KindMethod,
		MethodHandler: l.getSystemInfoHandler,
	})
	reg.Insert(registry.Element{
		Name:          "Device.X_RDK_Xmidt.SendData()",
		Kind:          registry.KindMethod,
		MethodHandler: sendDataHandler,
	})
	reg.Insert(registry.Element{
		Name:       "Device.DeviceInfo.ManufacturerOUI",
		Kind:       registry.KindProperty,
		Writable:   false,
		Default:    value.String("unknown"),
		GetHandler: func() (value.Value, error) { return probeString(l.Platform.ManufacturerOUI) },
	})
	reg.Insert(registry.Element{
		Name:       "Device.DeviceInfo.X_RDKCENTRAL-COM_FirstIPAddress",
		Kind:       registry.KindProperty,
		Writable:   false,
		Default:    value.String("unknown"),
		GetHandler: func() (value.Value, error) { return probeString(l.Platform.FirstNonLoopbackIP) },
	})
	return nil
}

func probeString(probe func() (string, error)) (value.Value, error) {
	s, err := probe()
	if err != nil {
		return value.Value{}, err
	}
	return value.String(s), nil
}

func probeDateTime(probe func() (string, error)) (value.Value, error) {
	s, err := probe()
	if err != nil {
		return value.Value{}, err
	}
	return value.DateTime(s), nil
}

// rebootHandler implements Device.Reboot(): a negative Delay is
// rejected; any non-negative Delay schedules a (here, simulated)
// reboot. Parameter names are specific to this one method; the model
// never interprets in/out parameters generically.
func rebootHandler(in map[string]value.Value) (map[string]value.Value, error) {
	delay, ok := in["Delay"]
	if ok && delay.Kind() == value.KindInt32 && delay.AsInt32() < 0 {
		return nil, fmt.Errorf("InvalidInput: Delay must be non-negative, got %d", delay.AsInt32())
	}
	return map[string]value.Value{"Status": value.String("Reboot scheduled")}, nil
}

// getSystemInfoHandler implements Device.GetSystemInfo(): a one-shot
// snapshot of the identity and memory probes.
func (l *Loader) getSystemInfoHandler(map[string]value.Value) (map[string]value.Value, error) {
	serial, err := l.Platform.SerialNumber()
	if err != nil {
		return nil, err
	}
	uptime, err := l.Platform.UptimeSeconds()
	if err != nil {
		return nil, err
	}
	total, used, free, err := l.Platform.MemoryKiB()
	if err != nil {
		return nil, err
	}
	return map[string]value.Value{
		"SerialNumber": value.String(serial),
		"UpTime":       value.UInt32(uptime),
		"MemoryTotal":  value.UInt32(total),
		"MemoryUsed":   value.UInt32(used),
		"MemoryFree":   value.UInt32(free),
	}, nil
}

// sendDataHandler implements Device.X_RDK_Xmidt.SendData(). Forwarding
// the payload to the Xmidt cloud endpoint belongs to the bus daemon,
// not this provider; here the handler only validates the payload is
// present and acknowledges.
func sendDataHandler(in map[string]value.Value) (map[string]value.Value, error) {
	payload, ok := in["Payload"]
	if !ok || payload.AsString() == "" {
		return nil, fmt.Errorf("InvalidInput: Payload is required")
	}
	return map[string]value.Value{"Status": value.String("accepted")}, nil
}
