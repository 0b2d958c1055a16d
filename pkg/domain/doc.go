/*
Package domain contains the core domain models of the coherence engine.

It defines the coherence tags of the MSI protocol, the page record guarded by its own
mutex, the error kinds surfaced by every operation and the lifecycle events used for
observability. This package is kept free of I/O and persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Tag: The coherence state of a page (Invalid, Shared, Modified).
  - Page: A fixed-size unit of coherent memory with its tag and backing bytes.
  - AccessKind: Whether a fault was raised by a read or a write.
  - LifecycleHooks: Callbacks fired on transitions, messages and faults.
*/
package domain
