package bplus

// reparent points every child in children at parentNo.
func (f *IndexedFile) reparent(tid uint64, children []int, parentNo int, ws *workingSet) error {
	for _, childNo := range children {
		err := f.updateNode(tid, childNo, ws, func(child *IndexedPage) {
			child.parentID = parentNo
		})
		if err != nil {
			return err
		}
	}
	return nil
}
