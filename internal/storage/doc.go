/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage implements document persistence and indexing.
// It encodes and decodes the JSON document format, including every legacy
// shape older writers produced, and writes files transactionally with
// timestamped backups. It also manages the per-document SQLite sidecar at
// <dir>/.inkboard/<name>.sqlite used for search and thumbnail caching; the
// sidecar is derived from the document and rebuildable.
package storage
