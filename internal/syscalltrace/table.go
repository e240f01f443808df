package syscalltrace

import "strconv"

// names maps a well-known subset of x86-64 Linux syscall numbers to their
// names. Modeled as fixed configuration, not mutable state: a lookup miss
// falls back to the raw number rather than erroring, since the table is
// deliberately a "well-known subset", not exhaustive.
var names = map[uint64]string{
	0:   "read",
	1:   "write",
	2:   "open",
	3:   "close",
	4:   "stat",
	5:   "fstat",
	8:   "lseek",
	9:   "mmap",
	10:  "mprotect",
	11:  "munmap",
	12:  "brk",
	13:  "rt_sigaction",
	14:  "rt_sigprocmask",
	21:  "access",
	22:  "pipe",
	23:  "select",
	32:  "dup",
	33:  "dup2",
	39:  "getpid",
	41:  "socket",
	42:  "connect",
	44:  "sendto",
	45:  "recvfrom",
	56:  "clone",
	57:  "fork",
	59:  "execve",
	60:  "exit",
	61:  "wait4",
	62:  "kill",
	63:  "uname",
	72:  "fcntl",
	79:  "getcwd",
	89:  "readlink",
	97:  "getrlimit",
	101: "ptrace",
	102: "getuid",
	104: "getgid",
	105: "setuid",
	106: "setgid",
	107: "geteuid",
	108: "getegid",
	137: "statfs",
	158: "arch_prctl",
	186: "gettid",
	218: "set_tid_address",
	228: "clock_gettime",
	231: "exit_group",
	257: "openat",
	262: "newfstatat",
	273: "set_robust_list",
	302: "prlimit64",
	318: "getrandom",
	334: "rseq",
}

// Name returns the syscall name for nr, or its decimal form when nr is
// outside the fixed table.
func Name(nr uint64) string {
	if n, ok := names[nr]; ok {
		return n
	}
	return strconv.FormatUint(nr, 10)
}
