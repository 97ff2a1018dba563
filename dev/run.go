package dev

import (
	"fmt"
	"time"

	"github.com/udhos/iosauto/conf"
)

// Result codes.
const (
	ResultOK        = 0
	ResultTransport = 1
	ResultLogin     = 2
	ResultEnable    = 3
	ResultPager     = 4
	ResultJob       = 5
	ResultGetDevice = 6
)

// Job is the work done on one device once its session is open.
type Job interface {
	Name() string
	Run(s *Session, d *Device, opt *conf.AppConfig, logger hasPrintf) (string, error)
}

// Result is the outcome of a job on one device.
type Result struct {
	Index       int // position in the device list
	Model       string
	DevID       string
	DevHostPort string
	Transport   string
	Msg         string // error message
	Code        int
	Begin       time.Time
	End         time.Time
	Output      string
}

// Report aggregates the results of a batch, in device list order.
type Report struct {
	Success int
	Failure int
	Results []Result
}

// Failed lists the results with a non-zero code.
func (r Report) Failed() []Result {
	var list []Result
	for _, res := range r.Results {
		if res.Code != ResultOK {
			list = append(list, res)
		}
	}
	return list
}

// runDevice runs in a per-device goroutine.
func runDevice(logger hasPrintf, d *Device, index int, opt *conf.AppConfig, job Job, resultCh chan Result) {
	modelName := d.Model()
	logger.Printf("runDevice: %s %s %s %s %s job=%s", modelName, d.ID, d.HostPort, d.Transports, d.LoginUser, job.Name())

	result := Result{Index: index, Model: modelName, DevID: d.ID, DevHostPort: d.HostPort, Transport: d.Transports, Begin: time.Now()}

	defer func() {
		result.End = time.Now()
		resultCh <- result
	}()

	s, openErr := Open(logger, d, opt)
	if openErr != nil {
		result.Code = ResultTransport
		if se, ok := openErr.(*StepError); ok {
			result.Code = se.Code
			result.Transport = se.Transport
		}
		result.Msg = fmt.Sprintf("%s: %v", job.Name(), openErr)
		return
	}

	result.Transport = s.Transport()

	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			logger.Printf("runDevice: %s close: %v", d.ID, closeErr)
		}
	}()

	out, jobErr := job.Run(s, d, opt, logger)
	result.Output = out
	if jobErr != nil {
		result.Code = ResultJob
		result.Msg = fmt.Sprintf("%s: %v", job.Name(), jobErr)
	}
}

// Run executes the job on every device, at most opt.MaxConcurrency at a
// time, and never stops on a failed device. Device status is updated in tab
// and appended to the device errlog under repository.
func Run(tab DeviceUpdater, devices []*Device, logger hasPrintf, opt *conf.AppConfig, job Job, repository string) Report {

	deviceCount := len(devices)
	maxConcurrency := opt.MaxConcurrency // alias
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	logger.Printf("Run: starting job=%s devices=%d maxConcurrency=%d", job.Name(), deviceCount, maxConcurrency)

	report := Report{Results: make([]Result, deviceCount)}

	if deviceCount < 1 {
		logger.Printf("Run: no devices")
		return report
	}

	begin := time.Now()
	resultCh := make(chan Result)

	wait := 0
	nextDevice := 0
	elapMax := 0 * time.Second
	elapMin := 24 * time.Hour

	for nextDevice < deviceCount || wait > 0 {

		// launch additional devices
		for ; nextDevice < deviceCount; nextDevice++ {
			if wait >= maxConcurrency {
				break // max concurrent limit reached
			}

			d := devices[nextDevice]

			go runDevice(logger, d, nextDevice, opt, job, resultCh) // per-device goroutine
			wait++
		}

		// wait for one device to finish
		r := <-resultCh
		wait--
		elap := r.End.Sub(r.Begin)
		logger.Printf("Run: result: %s %s %s %s msg=[%s] code=%d wait=%d remain=%d elap=%s", r.Model, r.DevID, r.DevHostPort, r.Transport, r.Msg, r.Code, wait, deviceCount-nextDevice, elap)

		report.Results[r.Index] = r

		good := r.Code == ResultOK
		updateDeviceStatus(tab, r, logger)
		errlog(logger, r, repository, devices[r.Index].Debug, devices[r.Index].Attr.ErrlogHistSize)

		if good {
			report.Success++
		} else {
			report.Failure++
		}
		if elap < elapMin {
			elapMin = elap
		}
		if elap > elapMax {
			elapMax = elap
		}
	}

	elapsed := time.Since(begin)
	average := elapsed / time.Duration(deviceCount)

	logger.Printf("Run: finished job=%s elapsed=%s devices=%d success=%d failure=%d average=%s min=%s max=%s", job.Name(), elapsed, deviceCount, report.Success, report.Failure, average, elapMin, elapMax)

	return report
}

// RunIDs resolves device ids against the table before running the job.
// Unknown ids are reported as ResultGetDevice failures.
func RunIDs(tab *DeviceTable, ids []string, logger hasPrintf, opt *conf.AppConfig, job Job, repository string) Report {
	var devices []*Device
	var missing []Result

	for _, id := range ids {
		d, getErr := tab.GetDevice(id)
		if getErr != nil {
			now := time.Now()
			missing = append(missing, Result{DevID: id, Msg: fmt.Sprintf("RunIDs: could not find device: %v", getErr), Code: ResultGetDevice, Begin: now, End: now})
			continue
		}
		devices = append(devices, d)
	}

	report := Run(tab, devices, logger, opt, job, repository)

	for _, m := range missing {
		m.Index = len(report.Results)
		report.Results = append(report.Results, m)
		report.Failure++
	}

	return report
}

func updateDeviceStatus(tab DeviceUpdater, r Result, logger hasPrintf) {
	d, getErr := tab.GetDevice(r.DevID)
	if getErr != nil {
		logger.Printf("updateDeviceStatus: '%s' not found: %v", r.DevID, getErr)
		return
	}

	d.lastTry = r.End
	d.lastStatus = r.Code == ResultOK
	if d.lastStatus {
		d.lastSuccess = d.lastTry
	}
	d.lastElapsed = r.End.Sub(r.Begin)
	d.lastMessage = r.Msg
	d.lastOutput = r.Output

	if updateErr := tab.UpdateDevice(d); updateErr != nil {
		logger.Printf("updateDeviceStatus: '%s': %v", r.DevID, updateErr)
	}
}

// ClearDeviceStatus resets the status fields shown in the web UI.
func ClearDeviceStatus(tab DeviceUpdater, devID string, logger hasPrintf) (*Device, error) {
	d, getErr := tab.GetDevice(devID)
	if getErr != nil {
		return nil, fmt.Errorf("ClearDeviceStatus: '%s' not found: %v", devID, getErr)
	}

	d.lastTry = time.Time{}
	d.lastStatus = true
	d.lastMessage = ""
	d.lastOutput = ""

	if updateErr := tab.UpdateDevice(d); updateErr != nil {
		return nil, fmt.Errorf("ClearDeviceStatus: '%s': %v", devID, updateErr)
	}

	logger.Printf("ClearDeviceStatus: device %s status cleared", devID)

	return d, nil
}
