package dev

import (
	"fmt"
	"sort"
	"sync"
)

// DeviceUpdater is the part of DeviceTable used to record job results.
type DeviceUpdater interface {
	GetDevice(id string) (*Device, error)
	UpdateDevice(d *Device) error
}

// DeviceTable is a goroutine-safe registry of models and devices.
// Devices are handed out as copies.
type DeviceTable struct {
	models  map[string]*Model  // label => model
	devices map[string]*Device // id => device
	lock    sync.RWMutex
}

func NewDeviceTable() *DeviceTable {
	return &DeviceTable{models: map[string]*Model{}, devices: map[string]*Device{}}
}

func (t *DeviceTable) GetModel(modelName string) (*Model, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if m, ok := t.models[modelName]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("GetModel: not found: %s", modelName)
}

func (t *DeviceTable) SetModel(m *Model, logger hasPrintf) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, found := t.models[m.name]; found {
		return fmt.Errorf("SetModel: found: %s", m.name)
	}

	t.models[m.name] = m

	logger.Printf("SetModel: registered model: %s", m.name)

	return nil
}

func (t *DeviceTable) ListModels() []string {
	t.lock.RLock()
	defer t.lock.RUnlock()

	list := make([]string, 0, len(t.models))
	for name := range t.models {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

func (t *DeviceTable) SetDevice(d *Device) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, found := t.devices[d.ID]; found {
		return fmt.Errorf("SetDevice: found: %s", d.ID)
	}
	t.devices[d.ID] = d
	return nil
}

func (t *DeviceTable) GetDevice(id string) (*Device, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if d, found := t.devices[id]; found {
		dd := *d // clone
		return &dd, nil
	}
	return nil, fmt.Errorf("GetDevice: not found: %s", id)
}

func (t *DeviceTable) UpdateDevice(d *Device) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, found := t.devices[d.ID]; !found {
		return fmt.Errorf("UpdateDevice: not found: %s", d.ID)
	}
	dd := *d // clone
	t.devices[d.ID] = &dd
	return nil
}

// ListDevices returns copies sorted by id.
func (t *DeviceTable) ListDevices() []*Device {
	t.lock.RLock()
	defer t.lock.RUnlock()

	list := make([]*Device, 0, len(t.devices))
	for _, d := range t.devices {
		dd := *d // clone
		list = append(list, &dd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
