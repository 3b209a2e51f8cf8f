package pipeline

import (
	"fmt"
	"sync"

	"github.com/openpheno/phenoqc/pkg/report"
)

// Run processes every file on a fixed-size worker pool, one task per file.
// A failing task, panic included, is captured in its own report and never
// affects a sibling. Results come back in input order.
func (p *Pipeline) Run(files []string) []report.FileReport {
	results := make([]report.FileReport, len(files))
	jobs := make(chan int)

	workers := p.cfg.Workers
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.runTask(files[i])
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (p *Pipeline) runTask(file string) (rep report.FileReport) {
	defer func() {
		if r := recover(); r != nil {
			rep = report.FileReport{
				File:    file,
				Status:  StatusError,
				Message: fmt.Sprintf("task panicked: %v", r),
			}
			p.log.WithField("file", file).Errorf("recovered task panic: %v", r)
		}
	}()
	return p.ProcessFile(file)
}
