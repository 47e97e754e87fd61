/*
Copyright 2023 Avi Zimmerman <avi.zimmerman@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/webmeshproj/meshpeers/pkg/scheduler"
)

// SchedulerOptions are options for the probe worker pool.
type SchedulerOptions struct {
	// Workers is the maximum number of probes running at once.
	Workers int `koanf:"workers,omitempty"`
}

// NewSchedulerOptions returns the default scheduler options.
func NewSchedulerOptions() SchedulerOptions {
	return SchedulerOptions{Workers: scheduler.DefaultWorkers}
}

// BindFlags binds the flags for the scheduler options.
func (o *SchedulerOptions) BindFlags(prefix string, fs *pflag.FlagSet) {
	fs.IntVar(&o.Workers, prefix+"scheduler.workers", o.Workers, "Maximum number of probes running at once.")
}

// Validate validates the scheduler options.
func (o *SchedulerOptions) Validate() error {
	if o == nil {
		return nil
	}
	if o.Workers <= 0 {
		return fmt.Errorf("workers must be greater than zero")
	}
	if o.Workers > 256 {
		return fmt.Errorf("workers must be at most 256")
	}
	return nil
}
