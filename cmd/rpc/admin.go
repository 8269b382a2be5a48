package rpc

import (
	"net/http"
	"os"
	"time"

	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
	"github.com/julienschmidt/httprouter"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ApplyBlock applies a block submitted by the operator of a local network
// a block without a height is applied at the next height
func (s *Server) ApplyBlock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	block := new(dex.Block)
	if ok := unmarshal(w, r, block); !ok {
		return
	}
	var response *ApplyBlockResponse
	if err := s.withState(func(sm *dex.StateMachine) lib.ErrorI {
		if block.Height == 0 {
			block.Height = sm.Height() + 1
		}
		results, events, err := sm.ApplyBlock(block)
		if err != nil {
			return ErrApplyBlock(err)
		}
		response = &ApplyBlockResponse{Height: block.Height, Results: results, Events: events}
		return nil
	}); err != nil {
		write(w, err, http.StatusBadRequest)
		return
	}
	write(w, response, http.StatusOK)
}

// Config retrieves the node's configuration
func (s *Server) Config(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, s.config, http.StatusOK)
}

// ResourceUsage retrieves node resource usage
func (s *Server) ResourceUsage(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	pm, err := mem.VirtualMemory() // os memory
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	c, err := cpu.Times(false) // os cpu
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	cp, err := cpu.Percent(0, false) // os cpu percent
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	d, err := disk.Usage(s.config.DataDirPath) // disk of the data directory
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	name, err := p.Name()
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	status, err := p.Status()
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	numThreads, err := p.NumThreads()
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	memPercent, err := p.MemoryPercent()
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	utc, err := p.CreateTime()
	if err != nil {
		write(w, ErrResourceUsage(err), http.StatusInternalServerError)
		return
	}
	usage := ResourceUsageResponse{
		Process: ProcessResourceUsage{
			Name:          name,
			CreateTime:    time.UnixMilli(utc).Format(time.RFC822),
			ThreadCount:   uint64(numThreads),
			MemoryPercent: float64(memPercent),
			CPUPercent:    cpuPercent,
		},
		System: SystemResourceUsage{
			TotalRAM:        pm.Total,
			AvailableRAM:    pm.Available,
			UsedRAM:         pm.Used,
			UsedRAMPercent:  pm.UsedPercent,
			FreeRAM:         pm.Free,
			TotalDisk:       d.Total,
			UsedDisk:        d.Used,
			UsedDiskPercent: d.UsedPercent,
			FreeDisk:        d.Free,
		},
	}
	if len(status) != 0 {
		usage.Process.Status = status[0]
	}
	if len(cp) != 0 {
		usage.System.UsedCPUPercent = cp[0]
	}
	if len(c) != 0 {
		usage.System.UserCPU, usage.System.SystemCPU, usage.System.IdleCPU = c[0].User, c[0].System, c[0].Idle
	}
	write(w, usage, http.StatusOK)
}
