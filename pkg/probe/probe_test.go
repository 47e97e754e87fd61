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

package probe

import "testing"

func TestParseAverage(t *testing.T) {
	t.Parallel()
	tc := []struct {
		name   string
		output string
		want   float64
		wantOK bool
	}{
		{
			name: "IPutils",
			output: `PING 192.0.2.1 (192.0.2.1) 56(84) bytes of data.
--- 192.0.2.1 ping statistics ---
3 packets transmitted, 3 received, 0% packet loss, time 2003ms
rtt min/avg/max/mdev = 11.201/12.687/14.020/1.150 ms`,
			want:   12.687,
			wantOK: true,
		},
		{
			name: "BSD",
			output: `--- example.org ping statistics ---
3 packets transmitted, 3 packets received, 0.0% packet loss
round-trip min/avg/max/stddev = 20.100/21.500/23.000/1.200 ms`,
			want:   21.5,
			wantOK: true,
		},
		{
			name:   "Busybox",
			output: "round-trip min/avg/max = 1.000/2.250/3.500 ms",
			want:   2.25,
			wantOK: true,
		},
		{
			name: "Windows",
			output: `Ping statistics for 192.0.2.1:
    Packets: Sent = 3, Received = 3, Lost = 0 (0% loss),
Approximate round trip times in milli-seconds:
    Minimum = 10ms, Maximum = 14ms, Average = 12ms`,
			want:   12,
			wantOK: true,
		},
		{
			name: "NoReplies",
			output: `--- 192.0.2.1 ping statistics ---
3 packets transmitted, 0 received, 100% packet loss, time 2030ms`,
			wantOK: false,
		},
		{
			name:   "Empty",
			output: "",
			wantOK: false,
		},
	}
	for _, c := range tc {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseAverage(c.output)
			if ok != c.wantOK {
				t.Fatalf("ParseAverage ok = %v, want %v", ok, c.wantOK)
			}
			if ok && got != c.want {
				t.Errorf("ParseAverage = %v, want %v", got, c.want)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()
	for o, want := range map[Outcome]string{
		OutcomeReachable:   "reachable",
		OutcomeUnreachable: "unreachable",
		OutcomeTimedOut:    "timed-out",
		OutcomeCancelled:   "cancelled",
		Outcome(42):        "unknown",
	} {
		if o.String() != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, o.String(), want)
		}
	}
}
