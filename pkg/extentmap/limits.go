package extentmap

// DefaultCacheMax is the soft byte ceiling on cached buffer content used
// when Options.CacheMax is left at zero. 32 MiB, matching the original
// btrfs-progs extent_io_tree default.
const DefaultCacheMax uint64 = 33_554_432

// DefaultScanBudget bounds how many LRU entries a single reclaim pass
// inspects before giving up, even if the cache is still over budget. This
// keeps Alloc's worst case O(1)-ish instead of O(cache size) when every
// buffer near the LRU head happens to be pinned.
const DefaultScanBudget = 64
