/*
 *
 * Copyright 2023 NamespaceDB authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# NamespaceDB: the namespace engine of a distributed mass-storage system

NamespaceDB keeps a hierarchical, POSIX-like directory tree (files,
directories, symbolic links, hard links) whose authoritative state lives
in a relational database. Higher level services - NFS and WebDAV doors,
and the internal cell-messaging routing layer - consume its operations:
create/lookup/rename/remove, stat and attribute updates, inline file
content, extended attributes and per-directory tags, ACL storage, replica
locations, and content checksums.

## Data Model

* Inode, a 36 character identifier --> type, mode, owner, times, link
  count, generation; plus up to seven auxiliary level streams

* Directory entry, <parent, name> --> child inode; hard links are just
  additional entries referencing the same inode

* Tag, a directory scoped attribute inherited by structural sharing and
  detached on write (copy-on-write)

## Architecture

* The SQL driver is the sole mutator of the database; every public
  operation is one atomic database unit executed inside the caller's
  transaction. Statement dialects can be swapped per database.

* The routing table is the only in-process shared state; it routes cell
  addresses to next-hop gateways for the messaging layer.

## Building Blocks

* bun
* PostgreSQL
* Prometheus

*/

package namespacedb
