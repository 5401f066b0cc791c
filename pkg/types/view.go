package types

// View 模型的一个视图实例
//
// 视图本身不包含渲染逻辑，只描述“哪个会话的哪个模型，用哪个视图类”。
// 渲染由外部 RenderHost 完成。
type View struct {
	ID      ViewID
	Model   ModelID
	Session SessionKey

	// Class 视图类名（来自 _view_name 或类定义）
	Class string
}
