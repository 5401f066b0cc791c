// Package statetree 实现 widget 状态树与二进制缓冲区编解码
//
// # 概述
//
// Widget 状态是一棵嵌套树：标量、映射、序列与二进制缓冲区。
// 通道只能承载 JSON，因此发送前需要把缓冲区从树中抽出（Extract），
// 接收后再按路径放回（Inject）。
//
// 节点类型是显式的标签变体：
//
//	Scalar   - null / bool / number / string
//	Mapping  - map[string]Value
//	Sequence - []Value
//	Buffer   - 原始字节（可带类型视图名，如 "float32"）
//
// 任意 Go 值到状态树的转换通过 ConverterRegistry 显式注册，
// 转换发生在二进制判断之前（见 FromGo）。
//
// # 编解码规则
//
//   - 遍历顺序：深度优先，映射按键排序，序列按下标升序
//   - 序列中的缓冲区替换为 null（保持长度与兄弟顺序）
//   - 映射中的缓冲区键直接删除
//   - 写时复制：只克隆内容发生变化的最小容器，未触及的子树保持原身份
//   - Extract 从不修改输入
//
// # 往返律
//
//	env := statetree.Extract(s)
//	_ = statetree.Inject(env.State, env.Paths, env.Buffers)
//	statetree.Equal(env.State, s) // true
//
// Inject 原地修改树，调用方必须保证树不与其他持有者共享
// （Extract 的结果或刚解析出的树满足这一点）。
//
// # 线程安全
//
// 本包函数不加锁；同一棵树的并发读写由调用方负责。
// ConverterRegistry 是并发安全的。
package statetree
