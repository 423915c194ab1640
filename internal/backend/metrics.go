/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callscript_http_requests_total",
			Help: "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callscript_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	parseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callscript_parse_total",
			Help: "Parsed scripts by outcome (structured or unstructured).",
		},
		[]string{"outcome"},
	)

	parsedBeats = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callscript_parsed_beats",
		Help:    "Number of beats in structured parse results.",
		Buckets: []float64{3, 4, 5, 6, 7, 8},
	})

	authFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callscript_auth_failures_total",
			Help: "Rejected bearer tokens by reason.",
		},
		[]string{"reason"},
	)
)
