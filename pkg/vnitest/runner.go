// Package vnitest runs the VNI/IP check against a testbed: a setup phase
// that connects devices and gathers BGP EVPN state, then a test phase that
// looks for every expected IP under its VNI.
package vnitest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/vnicheck/pkg/device"
	"github.com/newtron-network/vnicheck/pkg/evpn"
	"github.com/newtron-network/vnicheck/pkg/mapping"
	"github.com/newtron-network/vnicheck/pkg/testbed"
	"github.com/newtron-network/vnicheck/pkg/util"
)

// Config holds the run constants.
type Config struct {
	// ConnectTimeout overrides every device's connect timeout when non-zero.
	ConnectTimeout time.Duration
	MatchMode      evpn.MatchMode
}

// Opener builds a Device for a testbed entry.
type Opener func(*testbed.Device) (device.Device, error)

// Run is the state handed from Setup to Test.
type Run struct {
	Mapping      mapping.Mapping
	Snapshots    map[string]evpn.Snapshot
	GatherErrors map[string]error
	Configured   map[string]map[string]string // device -> VNI -> VLAN/VRF from device config
}

// Runner is the top-level vnicheck orchestrator.
type Runner struct {
	Testbed     *testbed.Testbed
	MappingPath string // "" falls back to $VNIS_IPS
	Config      Config
	Progress    ProgressReporter
	Open        Opener

	devices []device.Device
	run     *Run
	result  *Result
}

// NewRunner creates a runner for tb using the real device layer.
func NewRunner(tb *testbed.Testbed, mappingPath string, cfg Config) *Runner {
	return &Runner{
		Testbed:     tb,
		MappingPath: mappingPath,
		Config:      cfg,
		Open:        device.Open,
	}
}

// Execute runs Setup and Test and disconnects all devices. A setup error is
// returned and also recorded in the result.
func (r *Runner) Execute(ctx context.Context) (*Result, error) {
	defer r.Close()

	if err := r.Setup(ctx); err != nil {
		r.result.SetupError = err
		r.result.Status = StepStatusError
		r.result.Duration = time.Since(r.result.Started)
		r.progress(func(p ProgressReporter) { p.RunEnd(r.result) })
		return r.result, err
	}
	return r.Test(), nil
}

// Setup loads and validates the mapping, connects every testbed device and
// gathers BGP EVPN data. Mapping and connect errors abort; a device whose
// data cannot be gathered is recorded and skipped.
func (r *Runner) Setup(ctx context.Context) error {
	r.result = &Result{Name: r.Testbed.Name, Started: time.Now()}
	r.run = &Run{
		Snapshots:    make(map[string]evpn.Snapshot),
		GatherErrors: make(map[string]error),
		Configured:   make(map[string]map[string]string),
	}

	path, err := mapping.Path(r.MappingPath)
	if err != nil {
		return err
	}
	m, err := mapping.Load(path)
	if err != nil {
		return err
	}
	if err := r.checkMappingDevices(m); err != nil {
		return err
	}
	r.run.Mapping = m
	util.Infof("Loaded expected mapping from %s", path)

	names := r.Testbed.DeviceNames()
	r.progress(func(p ProgressReporter) { p.SetupStart(r.Testbed.Name, len(names)) })

	for _, name := range names {
		if err := r.connect(ctx, r.Testbed.Devices[name]); err != nil {
			return err
		}
	}
	util.Infof("Successfully connected to %d devices", len(r.devices))

	for _, dev := range r.devices {
		r.gather(ctx, dev)
	}
	r.logDataSummary()
	return nil
}

// checkMappingDevices rejects mappings that name devices absent from the
// testbed.
func (r *Runner) checkMappingDevices(m mapping.Mapping) error {
	vb := &util.ValidationBuilder{}
	for _, name := range m.Devices() {
		_, ok := r.Testbed.Devices[name]
		vb.Add(ok, fmt.Sprintf("mapping device %s is not in testbed %s", name, r.Testbed.Name))
	}
	return vb.Build()
}

func (r *Runner) connect(ctx context.Context, td *testbed.Device) error {
	step := StepResult{Name: fmt.Sprintf("Connecting to device '%s'", td.Name), Device: td.Name}
	start := time.Now()

	timeout := td.ConnectTimeout
	if r.Config.ConnectTimeout > 0 {
		timeout = r.Config.ConnectTimeout
	}

	util.WithDevice(td.Name).Infof("Connecting (timeout %s)", timeout)
	dev, err := r.Open(td)
	if err == nil {
		err = dev.Connect(ctx, timeout)
	}
	step.Duration = time.Since(start)

	if err != nil {
		util.WithDevice(td.Name).Errorf("Failed to connect: %v", err)
		step.Status = StepStatusError
		step.Message = err.Error()
		r.addSetupStep(step)
		return &InfraError{Op: "connect", Device: td.Name, Err: err}
	}

	step.Status = StepStatusPassed
	r.addSetupStep(step)
	r.devices = append(r.devices, dev)
	return nil
}

func (r *Runner) gather(ctx context.Context, dev device.Device) {
	name := dev.Name()
	step := StepResult{Name: fmt.Sprintf("Gathering BGP EVPN data on '%s'", name), Device: name}
	start := time.Now()

	data, err := dev.Parse(ctx, device.CmdShowBGPEVPN)
	step.Duration = time.Since(start)
	if err != nil {
		util.WithDevice(name).Errorf("Failed to parse BGP EVPN: %v", err)
		r.run.GatherErrors[name] = err
		step.Status = StepStatusError
		step.Message = err.Error()
		r.addSetupStep(step)
		return
	}

	r.run.Snapshots[name] = evpn.Snapshot(data)
	if cr, ok := dev.(device.VNIConfigReader); ok {
		if vnis := cr.ConfiguredVNIs(); vnis != nil {
			r.run.Configured[name] = vnis
		}
	}
	step.Status = StepStatusPassed
	r.addSetupStep(step)
}

func (r *Runner) addSetupStep(step StepResult) {
	r.result.Setup = append(r.result.Setup, step)
	r.progress(func(p ProgressReporter) { p.SetupStepEnd(&step) })
}

func (r *Runner) logDataSummary() {
	util.Info("Collected BGP EVPN Data Summary:")
	util.Infof("Total devices processed: %d", len(r.run.Snapshots))
	for _, dev := range r.devices {
		snap, ok := r.run.Snapshots[dev.Name()]
		if !ok {
			continue
		}
		util.WithDevice(dev.Name()).Infof("%d RD entries found", evpn.CountRDs(snap))
	}
	if util.Logger.IsLevelEnabled(logrus.DebugLevel) {
		if dump, err := json.MarshalIndent(r.run.Snapshots, "", "  "); err == nil {
			util.Debugf("Detailed BGP EVPN Data:\n%s", dump)
		}
	}
}

// Test checks every (layer, device, VNI) of the mapping against the
// gathered snapshots. Setup must have succeeded.
func (r *Runner) Test() *Result {
	res := r.result
	checker := evpn.NewChecker(r.Config.MatchMode)
	if checker.Mode == evpn.MatchSubstring {
		util.Logger.Warn("substring matching: an IP also matches longer addresses it prefixes (10.0.0.1 in 10.0.0.10/32); use --match address for exact matches")
	}

	var vnis []evpn.VNIResult
	for _, layer := range mapping.Layers {
		devices, ok := r.run.Mapping[layer]
		if !ok {
			util.Infof("No %s configuration found, skipping", layer)
			continue
		}
		for _, name := range r.run.Mapping.LayerDevices(layer) {
			snap, ok := r.run.Snapshots[name]
			if !ok {
				vnis = append(vnis, r.failDevice(string(layer), name, devices[name])...)
				continue
			}
			vnis = append(vnis, checker.CheckDevice(string(layer), name, snap, devices[name])...)
		}
	}

	r.progress(func(p ProgressReporter) { p.CheckStart(len(vnis)) })
	for i := range vnis {
		v := &vnis[i]
		res.Summary.Add(v)
		step := r.stepFor(v)
		res.Steps = append(res.Steps, step)
		r.progress(func(p ProgressReporter) { p.StepEnd(&step, i, len(vnis)) })
	}
	res.VNIs = vnis

	util.Infof("Summary: %d/%d IP checks passed", res.Summary.Passed, res.Summary.Total)
	if res.Summary.OK() {
		res.Status = StepStatusPassed
	} else {
		res.Status = StepStatusFailed
	}
	res.Duration = time.Since(res.Started)
	r.progress(func(p ProgressReporter) { p.RunEnd(res) })
	return res
}

// failDevice fails every VNI of a device that has no snapshot.
func (r *Runner) failDevice(layer, name string, vnis map[string][]string) []evpn.VNIResult {
	cause := r.run.GatherErrors[name]
	if cause == nil {
		cause = util.ErrNotFound
	}
	err := fmt.Errorf("no BGP EVPN data for %s: %w", name, cause)

	out := make([]evpn.VNIResult, 0, len(vnis))
	for _, vni := range sortedVNIs(vnis) {
		out = append(out, evpn.FailVNI(layer, name, vni, vnis[vni], err))
	}
	return out
}

func (r *Runner) stepFor(v *evpn.VNIResult) StepResult {
	step := StepResult{
		Name:   fmt.Sprintf("Device %s: Analyzing VNI %s (%s)", v.Device, v.VNI, v.Layer),
		Layer:  v.Layer,
		Device: v.Device,
		VNI:    v.VNI,
		Status: StepStatusPassed,
	}
	log := util.WithVNI(v.Device, v.Layer, v.VNI)

	switch {
	case v.Err != nil:
		step.Status = StepStatusFailed
		step.Message = v.Err.Error()
		var perr *evpn.PathError
		if errors.As(v.Err, &perr) {
			step.Message = fmt.Sprintf("Invalid BGP EVPN structure on %s: %v", v.Device, v.Err)
		}
		log.Error(step.Message)
	case !v.VNIFound:
		step.Status = StepStatusFailed
		step.Message = fmt.Sprintf("VNI %s not found on %s%s", v.VNI, v.Device, r.configNote(v.Device, v.VNI))
		log.Warn(step.Message)
	case !v.OK():
		step.Status = StepStatusFailed
		step.Message = fmt.Sprintf("%d/%d IPs found under RD %s", v.Passed(), len(v.IPs), v.RD)
	default:
		step.Message = fmt.Sprintf("all %d IPs found under RD %s", len(v.IPs), v.RD)
	}

	for _, ip := range v.IPs {
		d := CheckResult{IP: ip.IP}
		if ip.Found {
			d.Status = StepStatusPassed
			d.Message = "found in prefix " + ip.Prefix
			log.Infof("IP %s found (prefix: %s)", ip.IP, ip.Prefix)
		} else {
			d.Status = StepStatusFailed
			d.Message = ip.Message
			if v.VNIFound {
				log.Warnf("IP %s not found", ip.IP)
			}
		}
		step.Details = append(step.Details, d)
	}
	return step
}

// configNote says whether the device's configuration has the VNI, when the
// device can report it.
func (r *Runner) configNote(device, vni string) string {
	configured, ok := r.run.Configured[device]
	if !ok {
		return ""
	}
	if target, ok := configured[vni]; ok {
		return fmt.Sprintf(" (configured on the device, mapped to %s)", target)
	}
	return " (not configured on the device)"
}

// Close disconnects every connected device.
func (r *Runner) Close() {
	for _, dev := range r.devices {
		if err := dev.Close(); err != nil {
			util.WithDevice(dev.Name()).Warnf("Close: %v", err)
		}
	}
	r.devices = nil
}

// Run returns the setup state, or nil before Setup.
func (r *Runner) Run() *Run {
	return r.run
}

func (r *Runner) progress(fn func(ProgressReporter)) {
	if r.Progress != nil {
		fn(r.Progress)
	}
}

func sortedVNIs(vnis map[string][]string) []string {
	keys := make([]string, 0, len(vnis))
	for k := range vnis {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
