/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package rtt

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEstimatorStartsAtInitialValue(t *testing.T) {
	e := New()
	assert.Equal(t, initialEstimate, e.Smoothed())
	assert.Equal(t, time.Duration(0), e.Min())
}

func TestUpdateSmoothsTowardSample(t *testing.T) {
	e := New()
	base := time.Now()
	e.Update(base, base.Add(100*time.Millisecond), 0)

	want := time.Duration(math.Ceil(alpha*float64(100*time.Millisecond) + (1-alpha)*float64(initialEstimate)))
	assert.Equal(t, want, e.Smoothed())
	assert.Equal(t, 100*time.Millisecond, e.Latest())
}

func TestAckDelayIsSubtracted(t *testing.T) {
	e := New()
	base := time.Now()
	e.Update(base, base.Add(100*time.Millisecond), 20*time.Millisecond)
	assert.Equal(t, 80*time.Millisecond, e.Latest())
}

func TestOutlierIsDampened(t *testing.T) {
	e := New()
	base := time.Now()
	e.Update(base, base.Add(10*time.Millisecond), 0)
	assert.Equal(t, 10*time.Millisecond, e.Latest())

	// Second sample is more than double the first: dampened to 61.8%.
	e.Update(base, base.Add(100*time.Millisecond), 0)
	want := time.Duration(math.Ceil(0.618 * float64(100*time.Millisecond)))
	assert.Equal(t, want, e.Latest())
}

func TestMinTracksLowestSample(t *testing.T) {
	e := New()
	base := time.Now()
	e.Update(base, base.Add(50*time.Millisecond), 0)
	e.Update(base, base.Add(20*time.Millisecond), 0)
	e.Update(base, base.Add(80*time.Millisecond), 0)
	assert.Equal(t, 20*time.Millisecond, e.Min())
}

func TestMsRTT(t *testing.T) {
	e := New()
	base := time.Now()
	e.Update(base, base.Add(2500*time.Microsecond), 0)
	e.smoothed = 2500 * time.Microsecond
	assert.Equal(t, int64(2), e.MsRTT())
}
