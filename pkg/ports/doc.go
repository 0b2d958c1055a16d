/*
Package ports defines the driven ports (interfaces) of the coherence engine.

These interfaces decouple the engine from the page table, the transport, the OS memory
interface and peer discovery, so each can be swapped for tests or other deployments.

# Key Interfaces

  - PageStore: Maps addresses to page records and registers regions in bulk.
  - Sender / Conn: Sends protocol messages and, for Conn, receives them.
  - Releaser: Drops the physical backing of a page so the next touch faults.
  - PeerRegistry: Lets two nodes sharing a region find each other.
  - DistributedLocker: Lets exactly one node claim the home role of a region.
*/
package ports
