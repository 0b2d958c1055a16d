// Package mmap backs pages with anonymous memory mappings and releases them with
// madvise(MADV_DONTNEED), so an invalidated page keeps its mapping but loses its
// physical frames. It is only available on Linux.
package mmap
