package log

import (
	"runtime"
	"strconv"
	"strings"
)

var _unknownCaller = &callerInfo{info: "unknown"}

type callerInfo struct {
	file string
	line int
	info string
}

func newCallerInfo(file string, function string, line int) *callerInfo {
	return &callerInfo{
		file: file,
		line: line,
		info: file + ":" + strconv.Itoa(line) + " " + function,
	}
}

func (c *callerInfo) String() string {
	return c.info
}

// shortCaller trims the file to "dir/file.go" and the function to its last element.
func shortCaller(file, funcName string) (string, string) {
	if dot := strings.LastIndexByte(funcName, '.'); dot != -1 {
		funcName = funcName[dot+1:]
	}
	if slash := strings.LastIndexByte(file, '/'); slash > 0 {
		if prev := strings.LastIndexByte(file[:slash], '/'); prev >= 0 {
			file = file[prev+1:]
		}
	}
	return file, funcName
}

func lookupCaller(skip int) (uintptr, string, string, int, bool) {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return 0, "", "", 0, false
	}
	fn := runtime.FuncForPC(pc)
	name := ""
	if fn != nil {
		name = fn.Name()
	}
	return pc, file, name, line, true
}
