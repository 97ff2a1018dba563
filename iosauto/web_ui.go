package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/icza/gowut/gwu"
	"github.com/udhos/difflib"

	"github.com/udhos/iosauto/dev"
	"github.com/udhos/iosauto/store"
)

func newWin(ios *app, path, name string) gwu.Window {
	win := gwu.NewWindow(path, name)
	ios.logf("window=[%s] created", path)
	return win
}

func deviceWinName(id string) string {
	return "device-" + id
}

func textBox(text string, rows int) gwu.TextBox {
	box := gwu.NewTextBox("")
	box.SetRows(rows)
	box.SetCols(100)
	box.SetText(text)
	box.SetReadOnly(true)
	return box
}

// diffTable renders the two buffers side by side, line numbers outside.
func diffTable(bufFrom, bufTo []byte) gwu.Table {
	diff := difflib.Diff(store.SplitLines(bufFrom), store.SplitLines(bufTo))

	diffBox := gwu.NewTable()
	diffBox.Style().AddClass("diffbox")

	colLineNumFrom := 0
	colLineTextFrom := 1
	colLineTextTo := 2
	colLineNumTo := 3

	var f, t int

	for _, d := range diff {

		switch d.Delta {
		case difflib.LeftOnly:
			diffBox.Add(gwu.NewLabel(strconv.Itoa(f+1)), f, colLineNumFrom)
			lab := gwu.NewLabel(d.Payload)
			lab.Style().SetColor(gwu.ClrRed)
			diffBox.Add(lab, f, colLineTextFrom)
			f++
		case difflib.RightOnly:
			diffBox.Add(gwu.NewLabel(strconv.Itoa(t+1)), t, colLineNumTo)
			lab := gwu.NewLabel(d.Payload)
			lab.Style().SetColor(gwu.ClrGreen)
			diffBox.Add(lab, t, colLineTextTo)
			t++
		case difflib.Common:
			diffBox.Add(gwu.NewLabel(strconv.Itoa(f+1)), f, colLineNumFrom)
			diffBox.Add(gwu.NewLabel(strconv.Itoa(t+1)), t, colLineNumTo)
			diffBox.Add(gwu.NewLabel(d.Payload), f, colLineTextFrom)
			diffBox.Add(gwu.NewLabel(d.Payload), t, colLineTextTo)
			f++
			t++
		}
	}

	return diffBox
}

func buildDeviceWindow(ios *app, e gwu.Event, devID string) string {
	winName := deviceWinName(devID)
	s := e.Session()
	win := s.WinByName(winName)
	if win != nil {
		return winName
	}
	winTitle := "Device: " + devID
	win = newWin(ios, winName, winTitle)
	win.Add(gwu.NewLabel(winTitle))

	refreshButton := gwu.NewButton("Refresh")
	win.Add(refreshButton)

	panel := gwu.NewTabPanel()

	outputPanel := gwu.NewPanel()
	filesPanel := gwu.NewPanel()
	filesMsg := gwu.NewLabel("No error")
	filesTab := gwu.NewTable()
	filesPanel.Add(filesMsg)
	filesPanel.Add(filesTab)
	showPanel := gwu.NewPanel()
	logPanel := gwu.NewPanel()
	diffPanel := gwu.NewPanel()

	panel.Add(gwu.NewLabel("Last Output"), outputPanel) // tab 0
	panel.Add(gwu.NewLabel("Backups"), filesPanel)      // tab 1
	panel.Add(gwu.NewLabel("View Config"), showPanel)   // tab 2
	panel.Add(gwu.NewLabel("Error Log"), logPanel)      // tab 3
	panel.Add(gwu.NewLabel("Diff"), diffPanel)          // tab 4

	const tabShow = 2 // index
	const tabDiff = 4 // index

	loadOutput := func(e gwu.Event) {
		outputPanel.Clear()

		d, getErr := ios.table.GetDevice(devID)
		if getErr != nil {
			outputPanel.Add(gwu.NewLabel(fmt.Sprintf("Get device error: %v", getErr)))
			e.MarkDirty(outputPanel)
			return
		}

		outputPanel.Add(gwu.NewLabel(fmt.Sprintf("Job: %s  Status: %s  Last try: %s", ios.job.Name(), statusString(d), timestampString(d.LastTry()))))
		if msg := d.LastMessage(); msg != "" {
			outputPanel.Add(gwu.NewLabel("Message: " + msg))
		}
		outputPanel.Add(textBox(d.LastOutput(), 30))
		e.MarkDirty(outputPanel)
	}

	loadLog := func(e gwu.Event) {

		logPath := dev.ErrlogPath(ios.repositoryPath, devID)
		logPanel.Clear()
		logPanel.Add(gwu.NewLabel("File: " + logPath))

		maxSize := int64(1000 * 100) // 1000 x 100-byte lines

		d, getErr := ios.table.GetDevice(devID)
		if getErr != nil {
			logPanel.Add(gwu.NewLabel(fmt.Sprintf("Get device error: %v", getErr)))
		} else {
			maxSize = 1000 * int64(d.Attr.ErrlogHistSize) // max 1000 bytes per line
		}

		b, readErr := store.FileRead(logPath, maxSize)
		if readErr != nil {
			logPanel.Add(gwu.NewLabel(fmt.Sprintf("Could not read '%s': %v", logPath, readErr)))
		}

		logPanel.Add(textBox(string(b), 30))
		e.MarkDirty(logPanel)
	}

	loadView := func(e gwu.Event, show string) {
		showPanel.Clear()
		if show == "" {
			showPanel.Add(gwu.NewLabel("No backup"))
			e.MarkDirty(panel)
			return
		}
		showPanel.Add(gwu.NewLabel("File: " + show))

		options := ios.options.Get()
		b, readErr := store.FileRead(show, options.MaxConfigLoadSize)
		if readErr != nil {
			showPanel.Add(gwu.NewLabel(fmt.Sprintf("Could not read '%s': %v", show, readErr)))
		}

		showPanel.Add(textBox(string(b), 40))
		e.MarkDirty(panel)
	}

	loadDiff := func(e gwu.Event, from, to string) {

		ios.logger.Printf("diff: from=%s to=%s", from, to)

		diffPanel.Clear()
		diffPanel.Add(gwu.NewLabel("From: " + from))
		diffPanel.Add(gwu.NewLabel("To: " + to))

		options := ios.options.Get()

		bufFrom, errReadFrom := store.FileRead(from, options.MaxConfigLoadSize)
		if errReadFrom != nil {
			diffPanel.Add(gwu.NewLabel(fmt.Sprintf("Could not read '%s': %v", from, errReadFrom)))
		}

		bufTo, errReadTo := store.FileRead(to, options.MaxConfigLoadSize)
		if errReadTo != nil {
			diffPanel.Add(gwu.NewLabel(fmt.Sprintf("Could not read '%s': %v", to, errReadTo)))
		}

		diffPanel.Add(diffTable(bufFrom, bufTo))
		e.MarkDirty(panel)
	}

	prefix := dev.DevicePathPrefix(ios.repositoryPath, devID)

	fileList := func(e gwu.Event) {
		dirname, matches, listErr := store.ListConfigSorted(prefix, true, ios.logger)
		if listErr != nil {
			filesMsg.SetText(fmt.Sprintf("List files error: %v", listErr))
			e.MarkDirty(filesPanel)
			return
		}

		filesMsg.SetText(fmt.Sprintf("%d files", len(matches)))

		filesTab.Clear()

		addRow(filesTab, 0, labels("Download", "View", "Size", "Time", "Diff From", "Compare")...)

		for i, m := range matches {
			path := store.Join(dirname, m)
			timeStr := "unknown"

			modTime, size, infoErr := store.FileInfo(path)
			if infoErr == nil {
				timeStr = timestampString(modTime)
			} else {
				timeStr += fmt.Sprintf("(could not get file info: %v)", infoErr)
			}

			var filePath string

			if store.S3Path(path) {
				filePath = store.S3URL(path)
			} else {
				filePath = fmt.Sprintf("%s/%s/%s", ios.repoPath, devID, m)
			}
			devLink := gwu.NewLink(m, filePath)

			buttonView := gwu.NewButton("Open")
			show := path
			buttonView.AddEHandlerFunc(func(e gwu.Event) {
				loadView(e, show)
				panel.SetSelected(tabShow)
			}, gwu.ETypeClick)

			listDiffSrc := gwu.NewListBox(matches)
			buttonDiff := gwu.NewButton("Diff")

			diffFrom := i
			if i < len(matches)-1 {
				// default diff src is previous file
				diffFrom = i + 1
			}
			listDiffSrc.SetSelectedIndices([]int{diffFrom})

			diffTo := path
			buttonDiff.AddEHandlerFunc(func(e gwu.Event) {
				idx := listDiffSrc.SelectedIdx()
				if idx < 0 {
					idx = diffFrom
				}
				from := store.Join(dirname, matches[idx])
				loadDiff(e, from, diffTo)
				panel.SetSelected(tabDiff)
			}, gwu.ETypeClick)

			addRow(filesTab, i+1, devLink, buttonView, gwu.NewLabel(strconv.FormatInt(size, 10)), gwu.NewLabel(timeStr), listDiffSrc, buttonDiff)
		}

		e.MarkDirty(filesPanel)
	}

	// newest backup against the previous one
	preload := func(e gwu.Event) {
		dirname, matches, listErr := store.ListConfigSorted(prefix, true, ios.logger)
		if listErr != nil || len(matches) < 1 {
			loadView(e, "")
			return
		}
		to := store.Join(dirname, matches[0])
		from := to
		if len(matches) > 1 {
			from = store.Join(dirname, matches[1])
		}
		loadView(e, to)
		loadDiff(e, from, to)
	}

	refresh := func(e gwu.Event) {
		loadOutput(e)
		fileList(e)
		loadLog(e)
		preload(e)
		e.MarkDirty(win)
	}

	win.Add(panel)

	refresh(e) // first run

	refreshButton.AddEHandlerFunc(refresh, gwu.ETypeClick)

	win.AddEHandlerFunc(refresh, gwu.ETypeWinLoad)

	s.AddWin(win)

	return winName
}

// filterBox edits *value and redraws the table on every key stroke.
func filterBox(value *string, redraw func(gwu.Event)) gwu.TextBox {
	box := gwu.NewTextBox(*value)
	box.SetCols(10)
	box.AddSyncOnETypes(gwu.ETypeKeyUp) // synchronize values while typing
	box.AddEHandlerFunc(func(e gwu.Event) {
		*value = box.Text()
		redraw(e)
	}, gwu.ETypeChange)
	return box
}

func addRow(t gwu.Table, row int, comps ...gwu.Comp) {
	for col, c := range comps {
		t.Add(c, row, col)
	}
}

func labels(names ...string) []gwu.Comp {
	list := make([]gwu.Comp, len(names))
	for i, n := range names {
		list[i] = gwu.NewLabel(n)
	}
	return list
}

func buildDeviceTable(ios *app, t gwu.Table, tabSumm gwu.Panel) {
	redraw := func(e gwu.Event) {
		refreshDeviceTable(ios, t, tabSumm, e)
	}

	addRow(t, 0, filterBox(&ios.filterModel, redraw), filterBox(&ios.filterID, redraw), filterBox(&ios.filterHost, redraw))

	header := labels("Model", "Device", "Host:Port", "Transport", "Last Status", "Elapsed", "Last Try", "Last Success", "Message", "Run Now")
	header[2].SetAttr("title", "Part ':Port' is optional")
	addRow(t, 1, header...)

	devList := ios.table.ListDevices() // sorted by id

	row := 2
	for _, d := range devList {

		if !deviceMatch(d, ios.filterModel, ios.filterID, ios.filterHost) {
			continue
		}

		buttonID := gwu.NewButton(d.ID)

		devID := d.ID // get dev id for closure below
		buttonID.AddEHandlerFunc(func(e gwu.Event) {
			winName := buildDeviceWindow(ios, e, devID)
			e.ReloadWin(winName)
		}, gwu.ETypeClick)

		labStatus := gwu.NewLabel(statusString(d))
		if d.LastStatus() {
			labStatus.Style().SetColor(gwu.ClrGreen)
		} else {
			labStatus.Style().SetColor(gwu.ClrRed)
		}

		buttonRun := gwu.NewButton("Run")
		buttonRun.AddEHandlerFunc(func(e gwu.Event) {
			// run in a goroutine to not block the UI
			go runPriority(ios, devID)
		}, gwu.ETypeClick)

		addRow(t, row,
			gwu.NewLabel(d.Model()),
			buttonID,
			gwu.NewLabel(d.HostPort),
			gwu.NewLabel(d.Transports),
			labStatus,
			gwu.NewLabel(durationSecString(d.LastElapsed())),
			gwu.NewLabel(timestampString(d.LastTry())),
			gwu.NewLabel(timestampString(d.LastSuccess())),
			gwu.NewLabel(d.LastMessage()),
			buttonRun)

		row++
	}

	tabSumm.Clear()
	tabSumm.Add(gwu.NewLabel(fmt.Sprintf("Filter: %d selected from %d total devices", row-2, len(devList))))
}

func deviceMatch(d *dev.Device, model, id, host string) bool {
	return strings.Contains(d.Model(), model) && strings.Contains(d.ID, id) && strings.Contains(d.HostPort, host)
}

// runPriority reruns the current job on a single device.
func runPriority(ios *app, id string) {
	ios.logger.Printf("runPriority: device: %s", id)

	if _, clearErr := dev.ClearDeviceStatus(ios.table, id, ios.logger); clearErr != nil {
		ios.logger.Printf("runPriority: clear device %s status error: %v", id, clearErr)
		return
	}

	report := runJob(ios, []string{id})

	ios.logger.Printf("runPriority: device: %s success=%d failure=%d", id, report.Success, report.Failure)
}

func refreshDeviceTable(ios *app, t gwu.Table, tabSumm gwu.Panel, e gwu.Event) {
	t.Clear() // clear out table contents
	buildDeviceTable(ios, t, tabSumm)
	e.MarkDirty(t)
	e.MarkDirty(tabSumm)
}

func buildHomeWin(ios *app, s gwu.Session) {

	winName := fmt.Sprintf("%s home", appName)
	win := newWin(ios, "home", winName)

	header := gwu.NewHorizontalPanel()
	header.Add(gwu.NewLabel(fmt.Sprintf("%s %s", appName, appVersion)))
	win.Add(header)

	l := gwu.NewLabel(fmt.Sprintf("%s - job: %s", winName, ios.job.Name()))
	l.Style().SetFontWeight(gwu.FontWeightBold).SetFontSize("130%")
	win.Add(l)

	tableSumm := gwu.NewPanel()
	tableSumm.Add(gwu.NewLabel("table summary"))
	t := gwu.NewTable()
	t.Style().AddClass("device_table")

	refresh := func(e gwu.Event) {
		refreshDeviceTable(ios, t, tableSumm, e)
	}

	refreshButton := gwu.NewButton("Refresh")
	refreshButton.AddEHandlerFunc(refresh, gwu.ETypeClick)
	win.Add(refreshButton)

	win.AddEHandlerFunc(refresh, gwu.ETypeWinLoad)

	win.Add(gwu.NewLabel("Hint: fill in text boxes below to select matching subset of devices."))

	buildDeviceTable(ios, t, tableSumm)

	win.Add(tableSumm)
	win.Add(t)

	s.AddWin(win)

	ios.winHome = win
}

func statusString(d *dev.Device) string {
	if d.LastTry().IsZero() {
		return "-"
	}
	if d.LastStatus() {
		return "OK"
	}
	return "FAIL"
}

func timestampString(ts time.Time) string {
	if ts.IsZero() {
		return "never"
	}
	return ts.Format("2006-01-02 15:04:05")
}

func durationSecString(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
