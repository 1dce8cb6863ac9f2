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

// Package wire implements the Google QUIC (gQUIC) "Q039" wire format: the
// public packet header, the Reset/Negotiation/Regular packet bodies, and
// the fourteen frame encodings. All references are to the gQUIC crypto
// and transport specification as implemented by the Q039 wire format.
package wire
