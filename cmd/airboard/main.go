// Command airboard is a webcam air drawing board: pinch index finger and
// thumb together to draw, open them to hover.
package main

import "runtime"

func init() {
	// OpenCV's highgui and the tray expect the main thread.
	runtime.LockOSThread()
}

func main() {
	Execute()
}
